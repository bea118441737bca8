package goMFA

import (
	"time"

	"github.com/MrEthical07/goMFA/internal/security"
	"github.com/MrEthical07/goMFA/secret"
)

// SecurityReport summarizes the engine's protective settings for startup
// logging and compliance checks. It never contains key material.
type SecurityReport struct {
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

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	r := security.BuildReport(security.ReportInput{
		KDFIterations:       e.config.Cipher.KDFIterations,
		DefaultIterations:   secret.DefaultIterations,
		TOTPAlgorithm:       e.config.TOTP.Algorithm,
		TOTPPeriod:          e.config.TOTP.Period,
		TOTPSkew:            e.config.TOTP.Skew,
		ChallengeCodeDigits: e.config.Challenge.CodeDigits,
		ChallengeTTL:        e.config.Challenge.TTL,
		LockoutThreshold:    e.config.Lockout.MaxAttempts,
		LockoutDuration:     e.config.Lockout.Duration,
		BackupCodeCount:     e.config.BackupCodes.Count,
		BackupCodeLength:    e.config.BackupCodes.Length,
		TrustedDeviceTTL:    e.config.TrustedDevice.TTL,
		DistributedLocking:  e.locker != nil,
		AuditEnabled:        e.audit != nil,
	})
	return SecurityReport(r)
}
