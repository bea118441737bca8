package goMFA

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Config holds every tunable of the Engine. Start from DefaultConfig and
// override what you need.
type Config struct {
	Cipher        CipherConfig
	TOTP          TOTPConfig
	Challenge     ChallengeConfig
	Lockout       LockoutConfig
	BackupCodes   BackupCodeConfig
	TrustedDevice TrustedDeviceConfig
	Contact       ContactConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

// CipherConfig configures the secret cipher. MasterKey must be at least 32
// characters.
type CipherConfig struct {
	MasterKey                string
	KDFIterations            int
	MaxConcurrentDerivations int
}

// TOTPConfig configures authenticator-app factors.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	// Skew is the number of periods accepted on either side of now.
	Skew int
	// QRCodeSize is the edge length in pixels of the rendered QR code.
	QRCodeSize int
}

// ChallengeConfig configures SMS and email one-time codes.
type ChallengeConfig struct {
	CodeDigits int
	TTL        time.Duration
}

// LockoutConfig configures the verification lockout.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

type BackupCodeConfig struct {
	Count  int
	Length int
}

type TrustedDeviceConfig struct {
	TTL time.Duration
}

// ContactConfig configures contact validation. PhonePattern is matched after
// spaces, dashes, dots and parentheses are stripped.
type ContactConfig struct {
	PhonePattern string
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultPhonePattern accepts E.164 numbers.
const DefaultPhonePattern = `^\+[1-9]\d{7,14}$`

const minMasterKeyLength = 32

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. The master key is empty and
// must be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Cipher: CipherConfig{
			KDFIterations: 100_000,
		},
		TOTP: TOTPConfig{
			Issuer:     "goMFA",
			Digits:     6,
			Period:     30,
			Algorithm:  "SHA1",
			Skew:       2,
			QRCodeSize: 256,
		},
		Challenge: ChallengeConfig{
			CodeDigits: 6,
			TTL:        5 * time.Minute,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		BackupCodes: BackupCodeConfig{
			Count:  10,
			Length: 8,
		},
		TrustedDevice: TrustedDeviceConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Contact: ContactConfig{
			PhonePattern: DefaultPhonePattern,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting. Every returned error matches
// ErrConfiguration. Messages name the setting, never its value.
func (c *Config) Validate() error {
	// Cipher
	if utf8.RuneCountInString(c.Cipher.MasterKey) < minMasterKeyLength {
		return configError("Cipher MasterKey must be at least 32 characters")
	}
	if c.Cipher.KDFIterations < 10_000 {
		return configError("Cipher KDFIterations must be >= 10000")
	}
	if c.Cipher.MaxConcurrentDerivations < 0 {
		return configError("Cipher MaxConcurrentDerivations must be >= 0")
	}

	// TOTP
	if c.TOTP.Issuer == "" || strings.Contains(c.TOTP.Issuer, ":") {
		return configError("TOTP Issuer is required and must not contain ':'")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return configError("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period < 15 {
		return configError("TOTP Period must be >= 15 seconds")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 5 {
		return configError("TOTP Skew must be between 0 and 5")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "SHA1", "SHA256", "SHA512":
	default:
		return configError("TOTP Algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.TOTP.QRCodeSize < 64 {
		return configError("TOTP QRCodeSize must be >= 64")
	}

	// Challenge
	if c.Challenge.CodeDigits < 6 || c.Challenge.CodeDigits > 10 {
		return configError("Challenge CodeDigits must be between 6 and 10")
	}
	if c.Challenge.TTL <= 0 {
		return configError("Challenge TTL must be > 0")
	}

	// Lockout
	if c.Lockout.MaxAttempts <= 0 {
		return configError("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return configError("Lockout Duration must be > 0")
	}

	// Backup codes
	if c.BackupCodes.Count <= 0 {
		return configError("BackupCodes Count must be > 0")
	}
	if c.BackupCodes.Length < 6 || c.BackupCodes.Length > 32 {
		return configError("BackupCodes Length must be between 6 and 32")
	}

	if c.TrustedDevice.TTL <= 0 {
		return configError("TrustedDevice TTL must be > 0")
	}

	if c.Contact.PhonePattern != "" {
		if _, err := regexp.Compile(c.Contact.PhonePattern); err != nil {
			return configError("Contact PhonePattern does not compile")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configError("Audit BufferSize must be > 0 when Audit is enabled")
	}

	return nil
}

func configError(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, msg)
}
