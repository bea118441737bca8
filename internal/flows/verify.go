package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goMFA/internal/stores"
	"github.com/MrEthical07/goMFA/secret"
)

type VerifyMetrics struct {
	Success          int
	Failure          int
	RateLimited      int
	LockoutTriggered int
	BackupCodeUsed   int
}

type VerifyEvents struct {
	Success          string
	Failure          string
	RateLimited      string
	LockoutTriggered string
	BackupCodeUsed   string
}

type VerifyErrors struct {
	EngineNotReady    error
	Validation        error
	NotFound          error
	InvalidCode       error
	ChallengeNotFound error
	ChallengeExpired  error
	Unavailable       error
	RateLimited       func(retryAfter time.Duration) error
}

// VerifyDeps carries the collaborators of RunVerify.
type VerifyDeps struct {
	Now func() time.Time

	LoadFactors     func(context.Context, string) ([]stores.Factor, error)
	SaveFactors     func(context.Context, string, []stores.Factor) error
	LoadChallenge   func(context.Context, string) (*stores.Challenge, error)
	SaveChallenge   func(context.Context, *stores.Challenge) error
	DeleteChallenge func(context.Context, string) error

	CheckLockout    func(context.Context, string, time.Time) (time.Time, bool, error)
	LockoutExceeded func(attempts int) bool
	Lock            func(context.Context, string, time.Time) (time.Time, error)
	ClearLockout    func(context.Context, string) error

	Decrypt      func(context.Context, *secret.Envelope) (string, error)
	Hash         func(string) string
	ValidateTOTP func(code, secret string, at time.Time) bool

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)

	Metrics VerifyMetrics
	Events  VerifyEvents
	Errors  VerifyErrors
}

// RunVerify checks code against the principal's factor for method.
//
// A locked principal is rejected before any code is examined. A successful
// verification marks the factor Verified, stamps LastUsedAt and clears any
// lockout record. For SMS and email, the threshold-th failed attempt on a
// challenge locks the principal, discards the challenge and reports
// RateLimited.
func RunVerify(ctx context.Context, principalID, method, code string, deps VerifyDeps) error {
	normalizeVerifyDeps(&deps)

	if deps.LoadFactors == nil || deps.SaveFactors == nil || deps.CheckLockout == nil {
		return deps.Errors.EngineNotReady
	}
	if principalID == "" || !KnownMethod(method) || code == "" {
		return deps.Errors.Validation
	}

	now := deps.Now()
	until, locked, err := deps.CheckLockout(ctx, principalID, now)
	if err != nil {
		return deps.Errors.Unavailable
	}
	if locked {
		rlErr := deps.Errors.RateLimited(until.Sub(now))
		deps.MetricInc(deps.Metrics.RateLimited)
		deps.EmitAudit(ctx, deps.Events.RateLimited, false, principalID, method, rlErr, nil)
		return rlErr
	}

	factors, err := deps.LoadFactors(ctx, principalID)
	if err != nil {
		return deps.Errors.Unavailable
	}
	idx := stores.FindFactor(factors, method)
	if idx < 0 {
		return deps.Errors.NotFound
	}
	factor := factors[idx]

	switch method {
	case MethodTOTP:
		err = verifyTOTP(ctx, factor, code, now, &deps)
	case MethodSMS, MethodEmail:
		err = verifyChallenge(ctx, principalID, code, now, &deps)
	case MethodBackupCodes:
		factor.BackupCodeHashes, err = verifyBackupCode(factor.BackupCodeHashes, code, &deps)
	}
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, principalID, method, err, nil)
		return err
	}

	factor.Verified = true
	usedAt := now
	factor.LastUsedAt = &usedAt
	factors[idx] = factor
	if err := deps.SaveFactors(ctx, principalID, factors); err != nil {
		return deps.Errors.Unavailable
	}
	if deps.ClearLockout != nil {
		if err := deps.ClearLockout(ctx, principalID); err != nil {
			return deps.Errors.Unavailable
		}
	}

	if method == MethodBackupCodes {
		deps.MetricInc(deps.Metrics.BackupCodeUsed)
		remaining := len(factor.BackupCodeHashes)
		deps.EmitAudit(ctx, deps.Events.BackupCodeUsed, true, principalID, method, nil, func() map[string]string {
			return map[string]string{"remaining": strconv.Itoa(remaining)}
		})
	}
	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, principalID, method, nil, nil)
	return nil
}

func verifyTOTP(ctx context.Context, factor stores.Factor, code string, now time.Time, deps *VerifyDeps) error {
	if factor.Secret == nil || deps.Decrypt == nil || deps.ValidateTOTP == nil {
		return deps.Errors.EngineNotReady
	}
	key, err := deps.Decrypt(ctx, factor.Secret)
	if err != nil {
		return err
	}
	if !deps.ValidateTOTP(code, key, now) {
		return deps.Errors.InvalidCode
	}
	return nil
}

func verifyChallenge(ctx context.Context, principalID, code string, now time.Time, deps *VerifyDeps) error {
	if deps.LoadChallenge == nil || deps.SaveChallenge == nil || deps.DeleteChallenge == nil || deps.Lock == nil {
		return deps.Errors.EngineNotReady
	}

	ch, err := deps.LoadChallenge(ctx, principalID)
	if errors.Is(err, stores.ErrChallengeNotFound) {
		return deps.Errors.ChallengeNotFound
	}
	if err != nil {
		return deps.Errors.Unavailable
	}
	if ch.Expired(now) {
		if err := deps.DeleteChallenge(ctx, principalID); err != nil {
			return deps.Errors.Unavailable
		}
		return deps.Errors.ChallengeExpired
	}

	if subtle.ConstantTimeCompare([]byte(ch.Code), []byte(code)) == 1 {
		if err := deps.DeleteChallenge(ctx, principalID); err != nil {
			return deps.Errors.Unavailable
		}
		return nil
	}

	ch.Attempts++
	if deps.LockoutExceeded(int(ch.Attempts)) {
		until, err := deps.Lock(ctx, principalID, now)
		if err != nil {
			return deps.Errors.Unavailable
		}
		if err := deps.DeleteChallenge(ctx, principalID); err != nil {
			return deps.Errors.Unavailable
		}
		deps.MetricInc(deps.Metrics.LockoutTriggered)
		deps.EmitAudit(ctx, deps.Events.LockoutTriggered, false, principalID, ch.Method, nil, func() map[string]string {
			return map[string]string{"lockedUntil": until.UTC().Format(time.RFC3339)}
		})
		return deps.Errors.RateLimited(until.Sub(now))
	}
	if err := deps.SaveChallenge(ctx, ch); err != nil {
		return deps.Errors.Unavailable
	}
	return deps.Errors.InvalidCode
}

func verifyBackupCode(hashes []string, code string, deps *VerifyDeps) ([]string, error) {
	if deps.Hash == nil {
		return hashes, deps.Errors.EngineNotReady
	}
	remaining, ok := ConsumeBackupCodeHash(hashes, deps.Hash(CanonicalizeBackupCode(code)))
	if !ok {
		return hashes, deps.Errors.InvalidCode
	}
	return remaining, nil
}

func normalizeVerifyDeps(deps *VerifyDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.LockoutExceeded == nil {
		deps.LockoutExceeded = func(int) bool { return false }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.Errors.RateLimited == nil {
		deps.Errors.RateLimited = func(time.Duration) error { return deps.Errors.Unavailable }
	}
}
