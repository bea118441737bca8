package goMFA

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goMFA/store"
)

func TestSetupTOTPThenVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	setup, err := f.engine.SetupTOTP(ctx, "u1", "alice@example.com")
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}
	if setup.Secret == "" || !strings.HasPrefix(setup.URI, "otpauth://totp/") {
		t.Fatalf("unexpected setup %+v", setup)
	}
	if !strings.HasPrefix(setup.QRCode, "data:image/png;base64,") {
		t.Fatal("expected a PNG data URL")
	}

	methods, err := f.engine.GetUserMFAMethods(ctx, "u1")
	if err != nil || len(methods) != 0 {
		t.Fatalf("pending factor must not be listed, got %v %v", methods, err)
	}

	if err := f.engine.VerifyMFA(ctx, "u1", MethodTOTP, f.totpCode(t, setup.Secret)); err != nil {
		t.Fatalf("VerifyMFA: %v", err)
	}

	methods, err = f.engine.GetUserMFAMethods(ctx, "u1")
	if err != nil || len(methods) != 1 || methods[0] != MethodTOTP {
		t.Fatalf("expected [totp], got %v %v", methods, err)
	}

	factors, err := f.engine.ListFactors(ctx, "u1")
	if err != nil || len(factors) != 1 {
		t.Fatalf("ListFactors: %v %v", factors, err)
	}
	if factors[0].Status != FactorVerified || factors[0].LastUsedAt == nil {
		t.Fatalf("unexpected factor %+v", factors[0])
	}
}

func TestSetupTOTPDoesNotStoreSecretInPlaintext(t *testing.T) {
	f := newFixture(t)
	setup, err := f.engine.SetupTOTP(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}

	raw, err := f.store.Get(context.Background(), "u1", store.KindFactors)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if strings.Contains(string(raw), setup.Secret) {
		t.Fatal("factor document contains the plaintext secret")
	}
}

func TestVerifyTOTPAcceptsSkewWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret := f.enrollTOTP(t, "u1")

	past, err := f.engine.totp.Code(secret, f.clock.Now().Add(-60*time.Second))
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	if err := f.engine.VerifyMFA(ctx, "u1", MethodTOTP, past); err != nil {
		t.Fatalf("code two periods old should pass: %v", err)
	}

	stale, err := f.engine.totp.Code(secret, f.clock.Now().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	if err := f.engine.VerifyMFA(ctx, "u1", MethodTOTP, stale); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestVerifyTOTPFailuresDoNotLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret := f.enrollTOTP(t, "u1")

	for i := 0; i < 10; i++ {
		if err := f.engine.VerifyMFA(ctx, "u1", MethodTOTP, "000000x"); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i, err)
		}
	}
	if err := f.engine.VerifyMFA(ctx, "u1", MethodTOTP, f.totpCode(t, secret)); err != nil {
		t.Fatalf("VerifyMFA: %v", err)
	}
}

func TestResetupOfOnlyVerifiedTOTPIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enrollTOTP(t, "u1")

	if _, err := f.engine.SetupTOTP(ctx, "u1", ""); !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected ErrPolicyViolation, got %v", err)
	}

	if _, err := f.engine.GenerateBackupCodes(ctx, "u1"); err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	if _, err := f.engine.SetupTOTP(ctx, "u1", ""); err != nil {
		t.Fatalf("re-setup with a second verified factor: %v", err)
	}
}

func TestVerifyValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.VerifyMFA(ctx, "", MethodTOTP, "123456"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := f.engine.VerifyMFA(ctx, "u1", Method("push"), "123456"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := f.engine.VerifyMFA(ctx, "u1", MethodTOTP, "123456"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
