package goMFA

import (
	"encoding/base32"
	"strings"
	"testing"
	"time"
)

func rfcSecret(raw string) string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(raw))
}

func TestTOTPValidateRFCVectors(t *testing.T) {
	cases := []struct {
		algorithm string
		secret    string
		vectors   map[int64]string
	}{
		{
			algorithm: "SHA1",
			secret:    "12345678901234567890",
			vectors: map[int64]string{
				59:          "94287082",
				1111111109:  "07081804",
				1111111111:  "14050471",
				1234567890:  "89005924",
				2000000000:  "69279037",
				20000000000: "65353130",
			},
		},
		{
			algorithm: "SHA256",
			secret:    "12345678901234567890123456789012",
			vectors: map[int64]string{
				59:          "46119246",
				1111111109:  "68084774",
				1111111111:  "67062674",
				1234567890:  "91819424",
				2000000000:  "90698825",
				20000000000: "77737706",
			},
		},
		{
			algorithm: "SHA512",
			secret:    "1234567890123456789012345678901234567890123456789012345678901234",
			vectors: map[int64]string{
				59:          "90693936",
				1111111109:  "25091201",
				1111111111:  "99943326",
				1234567890:  "93441116",
				2000000000:  "38618901",
				20000000000: "47863826",
			},
		},
	}

	for _, tc := range cases {
		m, err := newTOTPManager(TOTPConfig{Issuer: "goMFA", Digits: 8, Period: 30, Algorithm: tc.algorithm})
		if err != nil {
			t.Fatalf("newTOTPManager(%s): %v", tc.algorithm, err)
		}
		secret := rfcSecret(tc.secret)
		for ts, code := range tc.vectors {
			if !m.Validate(code, secret, time.Unix(ts, 0)) {
				t.Fatalf("%s vector failed at t=%d", tc.algorithm, ts)
			}
		}
	}
}

func TestTOTPSkewWindow(t *testing.T) {
	m, err := newTOTPManager(TOTPConfig{Issuer: "goMFA", Digits: 6, Period: 30, Algorithm: "SHA1", Skew: 2})
	if err != nil {
		t.Fatalf("newTOTPManager: %v", err)
	}
	secret := rfcSecret("12345678901234567890")
	// step aligned
	issued := time.Unix(1_700_000_010, 0).Truncate(30 * time.Second)
	code, err := m.Code(secret, issued)
	if err != nil {
		t.Fatalf("Code: %v", err)
	}

	for _, d := range []time.Duration{0, 30 * time.Second, 60 * time.Second, -60 * time.Second} {
		if !m.Validate(code, secret, issued.Add(d)) {
			t.Fatalf("expected code accepted at offset %s", d)
		}
	}
	for _, d := range []time.Duration{90 * time.Second, -90 * time.Second} {
		if m.Validate(code, secret, issued.Add(d)) {
			t.Fatalf("expected code rejected at offset %s", d)
		}
	}
}

func TestTOTPRejectsMalformedCodes(t *testing.T) {
	m, err := newTOTPManager(TOTPConfig{Issuer: "goMFA", Digits: 6, Period: 30, Algorithm: "SHA1", Skew: 1})
	if err != nil {
		t.Fatalf("newTOTPManager: %v", err)
	}
	secret := rfcSecret("12345678901234567890")
	for _, code := range []string{"", "12345", "1234567", "12a456", "abcdef"} {
		if m.Validate(code, secret, time.Now()) {
			t.Fatalf("expected %q rejected", code)
		}
	}
}

func TestTOTPProvision(t *testing.T) {
	m, err := newTOTPManager(TOTPConfig{Issuer: "goMFA", Digits: 6, Period: 30, Algorithm: "SHA1", Skew: 2, QRCodeSize: 128})
	if err != nil {
		t.Fatalf("newTOTPManager: %v", err)
	}
	prov, err := m.Provision("alice@example.com")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if prov.Secret == "" {
		t.Fatal("expected secret")
	}
	if !strings.HasPrefix(prov.URI, "otpauth://totp/goMFA:alice@example.com?") || !strings.Contains(prov.URI, "secret="+prov.Secret) {
		t.Fatalf("unexpected provisioning uri %q", prov.URI)
	}
	if !strings.HasPrefix(prov.QRCode, "data:image/png;base64,") {
		t.Fatalf("unexpected qr code encoding (%d bytes)", len(prov.QRCode))
	}

	code, err := m.Code(prov.Secret, time.Now())
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	if !m.Validate(code, prov.Secret, time.Now()) {
		t.Fatal("expected freshly generated code to validate")
	}
}

func TestTOTPUnknownAlgorithm(t *testing.T) {
	if _, err := newTOTPManager(TOTPConfig{Algorithm: "MD5"}); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}
