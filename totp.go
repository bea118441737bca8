package goMFA

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"time"

	"github.com/MrEthical07/goMFA/internal/flows"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpSecretBytes = 20

var errUnsupportedTOTPAlgorithm = errors.New("unsupported totp algorithm")

type totpManager struct {
	config    TOTPConfig
	algorithm otp.Algorithm
}

func newTOTPManager(cfg TOTPConfig) (*totpManager, error) {
	alg, err := otpAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return &totpManager{config: cfg, algorithm: alg}, nil
}

// Provision generates a fresh key for account and renders its QR code as a
// PNG data URL.
func (m *totpManager) Provision(account string) (flows.TOTPProvision, error) {
	if m == nil {
		return flows.TOTPProvision{}, ErrEngineNotReady
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: account,
		Period:      uint(m.config.Period),
		SecretSize:  totpSecretBytes,
		Digits:      otp.Digits(m.config.Digits),
		Algorithm:   m.algorithm,
	})
	if err != nil {
		return flows.TOTPProvision{}, err
	}

	img, err := key.Image(m.config.QRCodeSize, m.config.QRCodeSize)
	if err != nil {
		return flows.TOTPProvision{}, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return flows.TOTPProvision{}, err
	}

	return flows.TOTPProvision{
		Secret: key.Secret(),
		URI:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Validate accepts codes from Skew periods on either side of at.
func (m *totpManager) Validate(code, secretBase32 string, at time.Time) bool {
	if m == nil {
		return false
	}
	code = strings.TrimSpace(code)
	if len(code) != m.config.Digits || !isNumericString(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secretBase32, at, m.validateOpts())
	return err == nil && ok
}

// Code returns the code for at. Used by tests and tooling.
func (m *totpManager) Code(secretBase32 string, at time.Time) (string, error) {
	if m == nil {
		return "", ErrEngineNotReady
	}
	return totp.GenerateCodeCustom(secretBase32, at, m.validateOpts())
}

func (m *totpManager) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(m.config.Period),
		Skew:      uint(m.config.Skew),
		Digits:    otp.Digits(m.config.Digits),
		Algorithm: m.algorithm,
	}
}

func otpAlgorithm(name string) (otp.Algorithm, error) {
	switch strings.ToUpper(name) {
	case "", "SHA1":
		return otp.AlgorithmSHA1, nil
	case "SHA256":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	default:
		return 0, errUnsupportedTOTPAlgorithm
	}
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
