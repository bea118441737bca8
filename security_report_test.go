package goMFA

import (
	"strings"
	"testing"
	"time"
)

func TestSecurityReportDefaults(t *testing.T) {
	f := newFixture(t)
	r := f.engine.SecurityReport()

	if r.TOTPAcceptWindow != time.Minute {
		t.Fatalf("expected 60s accept window, got %s", r.TOTPAcceptWindow)
	}
	if r.LockoutThreshold != 5 || r.LockoutDuration != 15*time.Minute {
		t.Fatalf("unexpected lockout %+v", r)
	}
	if !r.KDFBelowDefault {
		t.Fatal("test iterations are below the default")
	}
	if r.DistributedLocking || r.AuditEnabled {
		t.Fatalf("unexpected flags %+v", r)
	}

	joined := strings.Join(r.Warnings, "\n")
	for _, want := range []string{"process local", "audit disabled", "KDF iterations below default"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing warning %q in %v", want, r.Warnings)
		}
	}
}

func TestSecurityReportHasNoKeyMaterial(t *testing.T) {
	f := newFixture(t)
	r := f.engine.SecurityReport()
	for _, w := range r.Warnings {
		if strings.Contains(w, testMasterKey) {
			t.Fatal("report leaks the master key")
		}
	}
}
