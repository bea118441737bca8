package security

import (
	"math"
	"time"
)

// BackupCodeAlphabetSize is the number of symbols a backup code character is
// drawn from.
const BackupCodeAlphabetSize = 32

// Report summarizes the protective settings of an engine.
type Report struct {
	KDFIterations        int
	KDFBelowDefault      bool
	TOTPAlgorithm        string
	TOTPAcceptWindow     time.Duration
	ChallengeCodeDigits  int
	ChallengeTTL         time.Duration
	LockoutThreshold     int
	LockoutDuration      time.Duration
	BackupCodeCount      int
	BackupCodeBits       float64
	TrustedDeviceTTL     time.Duration
	DeterministicHashing bool
	DistributedLocking   bool
	AuditEnabled         bool
	Warnings             []string
}

type ReportInput struct {
	KDFIterations       int
	DefaultIterations   int
	TOTPAlgorithm       string
	TOTPPeriod          int
	TOTPSkew            int
	ChallengeCodeDigits int
	ChallengeTTL        time.Duration
	LockoutThreshold    int
	LockoutDuration     time.Duration
	BackupCodeCount     int
	BackupCodeLength    int
	TrustedDeviceTTL    time.Duration
	DistributedLocking  bool
	AuditEnabled        bool
}

func BuildReport(input ReportInput) Report {
	r := Report{
		KDFIterations:        input.KDFIterations,
		KDFBelowDefault:      input.KDFIterations < input.DefaultIterations,
		TOTPAlgorithm:        input.TOTPAlgorithm,
		TOTPAcceptWindow:     time.Duration(input.TOTPSkew*input.TOTPPeriod) * time.Second,
		ChallengeCodeDigits:  input.ChallengeCodeDigits,
		ChallengeTTL:         input.ChallengeTTL,
		LockoutThreshold:     input.LockoutThreshold,
		LockoutDuration:      input.LockoutDuration,
		BackupCodeCount:      input.BackupCodeCount,
		BackupCodeBits:       float64(input.BackupCodeLength) * math.Log2(BackupCodeAlphabetSize),
		TrustedDeviceTTL:     input.TrustedDeviceTTL,
		DeterministicHashing: true,
		DistributedLocking:   input.DistributedLocking,
		AuditEnabled:         input.AuditEnabled,
	}

	// Hashes are salted with the master key only, so equal inputs hash equally.
	r.Warnings = append(r.Warnings, "backup code hashes share one salt")
	if r.KDFBelowDefault {
		r.Warnings = append(r.Warnings, "KDF iterations below default")
	}
	if !input.DistributedLocking {
		r.Warnings = append(r.Warnings, "per-principal locking is process local")
	}
	if !input.AuditEnabled {
		r.Warnings = append(r.Warnings, "audit disabled")
	}
	return r
}
