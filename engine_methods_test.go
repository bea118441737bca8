package goMFA

import (
	"context"
	"errors"
	"testing"
)

func TestRemoveLastVerifiedFactorIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enrollTOTP(t, "u1")

	if err := f.engine.RemoveMFAMethod(ctx, "u1", MethodTOTP); !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected ErrPolicyViolation, got %v", err)
	}
	if got := f.engine.MetricsSnapshot().Counters[MetricPolicyViolation]; got != 1 {
		t.Fatalf("expected one policy violation, got %d", got)
	}

	if _, err := f.engine.GenerateBackupCodes(ctx, "u1"); err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	if err := f.engine.RemoveMFAMethod(ctx, "u1", MethodTOTP); err != nil {
		t.Fatalf("RemoveMFAMethod: %v", err)
	}
	methods, err := f.engine.GetUserMFAMethods(ctx, "u1")
	if err != nil || len(methods) != 1 || methods[0] != MethodBackupCodes {
		t.Fatalf("expected [backup_codes], got %v %v", methods, err)
	}
}

func TestRemovePendingFactor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.SetupTOTP(ctx, "u1", ""); err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}
	if err := f.engine.RemoveMFAMethod(ctx, "u1", MethodTOTP); err != nil {
		t.Fatalf("pending factor should be removable: %v", err)
	}
	if err := f.engine.RemoveMFAMethod(ctx, "u1", MethodTOTP); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveSMSDiscardsPendingChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enrollTOTP(t, "u1")

	if err := f.engine.SetupSMS(ctx, "u1", "+14155550123"); err != nil {
		t.Fatalf("SetupSMS: %v", err)
	}
	if err := f.engine.RemoveMFAMethod(ctx, "u1", MethodSMS); err != nil {
		t.Fatalf("RemoveMFAMethod: %v", err)
	}
	if _, err := f.engine.repo.Challenge(ctx, "u1"); err == nil {
		t.Fatal("expected the pending challenge to be removed")
	}
}

func TestListFactorsMasksContacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.SetupSMS(ctx, "u1", "+14155550123"); err != nil {
		t.Fatalf("SetupSMS: %v", err)
	}
	if err := f.engine.VerifyMFA(ctx, "u1", MethodSMS, f.notifier.lastSMSCode(t)); err != nil {
		t.Fatalf("VerifyMFA: %v", err)
	}
	if err := f.engine.SetupEmail(ctx, "u1", "alice@example.com"); err != nil {
		t.Fatalf("SetupEmail: %v", err)
	}
	if _, err := f.engine.GenerateBackupCodes(ctx, "u1"); err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}

	factors, err := f.engine.ListFactors(ctx, "u1")
	if err != nil {
		t.Fatalf("ListFactors: %v", err)
	}
	if len(factors) != 3 {
		t.Fatalf("expected 3 factors, got %+v", factors)
	}
	if factors[0].Method != MethodSMS || factors[0].Status != FactorVerified || factors[0].Destination != "+*******0123" {
		t.Fatalf("unexpected sms factor %+v", factors[0])
	}
	if factors[1].Method != MethodEmail || factors[1].Status != FactorPending || factors[1].Destination != "a****@example.com" {
		t.Fatalf("unexpected email factor %+v", factors[1])
	}
	if factors[2].Method != MethodBackupCodes || factors[2].RemainingBackupCodes != 10 {
		t.Fatalf("unexpected backup factor %+v", factors[2])
	}
}
