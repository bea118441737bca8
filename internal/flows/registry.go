package flows

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goMFA/internal/stores"
	"github.com/MrEthical07/goMFA/secret"
)

// TOTPProvision is a freshly generated TOTP key ready for display.
type TOTPProvision struct {
	Secret string
	URI    string
	QRCode string
}

type RegistryMetrics struct {
	FactorEnrolled         int
	FactorRemoved          int
	ChallengeIssued        int
	ChallengeDeliveryError int
	BackupCodesGenerated   int
	PolicyViolation        int
}

type RegistryEvents struct {
	FactorEnrolled       string
	FactorRemoved        string
	ChallengeIssued      string
	BackupCodesGenerated string
	PolicyViolation      string
}

type RegistryErrors struct {
	EngineNotReady     error
	Validation         error
	NotFound           error
	PolicyViolation    error
	Unavailable        error
	NotificationFailed error
	RateLimited        func(retryAfter time.Duration) error
}

// RegistryDeps carries everything the factor lifecycle flows touch.
type RegistryDeps struct {
	Now              func() time.Time
	BackupCodeCount  int
	BackupCodeLength int
	ChallengeTTL     time.Duration
	ChallengeDigits  int

	LoadFactors     func(context.Context, string) ([]stores.Factor, error)
	SaveFactors     func(context.Context, string, []stores.Factor) error
	LoadChallenge   func(context.Context, string) (*stores.Challenge, error)
	SaveChallenge   func(context.Context, *stores.Challenge) error
	DeleteChallenge func(context.Context, string) error
	CheckLockout    func(context.Context, string, time.Time) (time.Time, bool, error)

	Encrypt          func(context.Context, string) (*secret.Envelope, error)
	Decrypt          func(context.Context, *secret.Envelope) (string, error)
	Hash             func(string) string
	NewTOTPKey       func(account string) (TOTPProvision, error)
	NewChallengeCode func(digits int) (string, error)
	RandomIndex      func(int) (int, error)
	Deliver          func(ctx context.Context, method, contact, code string, ttl time.Duration) error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)

	Metrics RegistryMetrics
	Events  RegistryEvents
	Errors  RegistryErrors
}

// RunEnrollTOTP creates or replaces the principal's TOTP factor as Pending
// and returns the plaintext provisioning data once.
func RunEnrollTOTP(ctx context.Context, principalID, label string, deps RegistryDeps) (TOTPProvision, error) {
	normalizeRegistryDeps(&deps)

	if deps.LoadFactors == nil || deps.SaveFactors == nil || deps.Encrypt == nil || deps.NewTOTPKey == nil {
		return TOTPProvision{}, deps.Errors.EngineNotReady
	}
	if principalID == "" {
		return TOTPProvision{}, deps.Errors.Validation
	}
	if label == "" {
		label = principalID
	}

	factors, err := deps.LoadFactors(ctx, principalID)
	if err != nil {
		return TOTPProvision{}, deps.Errors.Unavailable
	}
	if err := guardReplace(ctx, principalID, MethodTOTP, factors, &deps); err != nil {
		return TOTPProvision{}, err
	}

	prov, err := deps.NewTOTPKey(label)
	if err != nil {
		return TOTPProvision{}, deps.Errors.Unavailable
	}
	env, err := deps.Encrypt(ctx, prov.Secret)
	if err != nil {
		return TOTPProvision{}, err
	}

	factors = upsertFactor(factors, stores.Factor{
		Method:    MethodTOTP,
		Secret:    env,
		CreatedAt: deps.Now(),
	})
	if err := deps.SaveFactors(ctx, principalID, factors); err != nil {
		return TOTPProvision{}, deps.Errors.Unavailable
	}

	deps.MetricInc(deps.Metrics.FactorEnrolled)
	deps.EmitAudit(ctx, deps.Events.FactorEnrolled, true, principalID, MethodTOTP, nil, nil)
	return prov, nil
}

// RunEnrollContact creates or replaces an SMS or email factor as Pending and
// issues its first challenge. contact must already be validated. When
// delivery fails the factor is not stored.
func RunEnrollContact(ctx context.Context, principalID, method, contact string, deps RegistryDeps) error {
	normalizeRegistryDeps(&deps)

	if deps.LoadFactors == nil || deps.SaveFactors == nil || deps.Encrypt == nil ||
		deps.SaveChallenge == nil || deps.DeleteChallenge == nil || deps.Deliver == nil {
		return deps.Errors.EngineNotReady
	}
	if principalID == "" || !IsContactMethod(method) || contact == "" {
		return deps.Errors.Validation
	}

	factors, err := deps.LoadFactors(ctx, principalID)
	if err != nil {
		return deps.Errors.Unavailable
	}
	if err := guardReplace(ctx, principalID, method, factors, &deps); err != nil {
		return err
	}

	env, err := deps.Encrypt(ctx, contact)
	if err != nil {
		return err
	}
	if err := issueChallenge(ctx, principalID, method, contact, &deps); err != nil {
		return err
	}

	factors = upsertFactor(factors, stores.Factor{
		Method:    method,
		Contact:   env,
		CreatedAt: deps.Now(),
	})
	if err := deps.SaveFactors(ctx, principalID, factors); err != nil {
		return deps.Errors.Unavailable
	}

	deps.MetricInc(deps.Metrics.FactorEnrolled)
	deps.EmitAudit(ctx, deps.Events.FactorEnrolled, true, principalID, method, nil, nil)
	return nil
}

// RunIssueChallenge sends a new code for an enrolled SMS or email factor,
// replacing any pending challenge. It is refused while the principal is
// locked out.
func RunIssueChallenge(ctx context.Context, principalID, method string, deps RegistryDeps) error {
	normalizeRegistryDeps(&deps)

	if deps.LoadFactors == nil || deps.Decrypt == nil || deps.SaveChallenge == nil ||
		deps.DeleteChallenge == nil || deps.Deliver == nil || deps.CheckLockout == nil {
		return deps.Errors.EngineNotReady
	}
	if principalID == "" || !IsContactMethod(method) {
		return deps.Errors.Validation
	}

	now := deps.Now()
	until, locked, err := deps.CheckLockout(ctx, principalID, now)
	if err != nil {
		return deps.Errors.Unavailable
	}
	if locked {
		return deps.Errors.RateLimited(until.Sub(now))
	}

	factors, err := deps.LoadFactors(ctx, principalID)
	if err != nil {
		return deps.Errors.Unavailable
	}
	idx := stores.FindFactor(factors, method)
	if idx < 0 || factors[idx].Contact == nil {
		return deps.Errors.NotFound
	}

	contact, err := deps.Decrypt(ctx, factors[idx].Contact)
	if err != nil {
		return err
	}
	return issueChallenge(ctx, principalID, method, contact, &deps)
}

// RunGenerateBackupCodes replaces the principal's backup codes with a new
// verified set and returns the plaintext codes once.
func RunGenerateBackupCodes(ctx context.Context, principalID string, deps RegistryDeps) ([]string, error) {
	normalizeRegistryDeps(&deps)

	if deps.LoadFactors == nil || deps.SaveFactors == nil || deps.Hash == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if principalID == "" {
		return nil, deps.Errors.Validation
	}

	factors, err := deps.LoadFactors(ctx, principalID)
	if err != nil {
		return nil, deps.Errors.Unavailable
	}

	codes, err := NewBackupCodeSet(deps.BackupCodeCount, deps.BackupCodeLength, deps.RandomIndex)
	if err != nil {
		return nil, deps.Errors.Unavailable
	}
	hashes := make([]string, len(codes))
	for i, code := range codes {
		hashes[i] = deps.Hash(code)
	}

	now := deps.Now()
	factors = upsertFactor(factors, stores.Factor{
		Method:           MethodBackupCodes,
		BackupCodeHashes: hashes,
		Verified:         true,
		CreatedAt:        now,
	})
	if err := deps.SaveFactors(ctx, principalID, factors); err != nil {
		return nil, deps.Errors.Unavailable
	}

	deps.MetricInc(deps.Metrics.BackupCodesGenerated)
	deps.EmitAudit(ctx, deps.Events.BackupCodesGenerated, true, principalID, MethodBackupCodes, nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(len(codes))}
	})
	return codes, nil
}

// RunRemoveMethod deletes a factor. The principal's only verified factor
// cannot be removed. Removing an SMS or email factor also discards a pending
// challenge issued for it.
func RunRemoveMethod(ctx context.Context, principalID, method string, deps RegistryDeps) error {
	normalizeRegistryDeps(&deps)

	if deps.LoadFactors == nil || deps.SaveFactors == nil {
		return deps.Errors.EngineNotReady
	}
	if principalID == "" || !KnownMethod(method) {
		return deps.Errors.Validation
	}

	factors, err := deps.LoadFactors(ctx, principalID)
	if err != nil {
		return deps.Errors.Unavailable
	}
	idx := stores.FindFactor(factors, method)
	if idx < 0 {
		return deps.Errors.NotFound
	}
	if factors[idx].Verified && stores.CountVerified(factors) == 1 {
		deps.MetricInc(deps.Metrics.PolicyViolation)
		deps.EmitAudit(ctx, deps.Events.PolicyViolation, false, principalID, method, deps.Errors.PolicyViolation, nil)
		return deps.Errors.PolicyViolation
	}

	remaining := make([]stores.Factor, 0, len(factors)-1)
	remaining = append(remaining, factors[:idx]...)
	remaining = append(remaining, factors[idx+1:]...)
	if err := deps.SaveFactors(ctx, principalID, remaining); err != nil {
		return deps.Errors.Unavailable
	}

	if IsContactMethod(method) && deps.LoadChallenge != nil && deps.DeleteChallenge != nil {
		ch, err := deps.LoadChallenge(ctx, principalID)
		switch {
		case err == nil && ch.Method == method:
			if err := deps.DeleteChallenge(ctx, principalID); err != nil {
				return deps.Errors.Unavailable
			}
		case err != nil && !errors.Is(err, stores.ErrChallengeNotFound):
			return deps.Errors.Unavailable
		}
	}

	deps.MetricInc(deps.Metrics.FactorRemoved)
	deps.EmitAudit(ctx, deps.Events.FactorRemoved, true, principalID, method, nil, nil)
	return nil
}

// RunVerifiedMethods lists verified methods in MethodOrder.
func RunVerifiedMethods(ctx context.Context, principalID string, deps RegistryDeps) ([]string, error) {
	normalizeRegistryDeps(&deps)

	if deps.LoadFactors == nil {
		return nil, deps.Errors.EngineNotReady
	}
	factors, err := deps.LoadFactors(ctx, principalID)
	if err != nil {
		return nil, deps.Errors.Unavailable
	}

	methods := make([]string, 0, len(factors))
	for _, m := range MethodOrder {
		if idx := stores.FindFactor(factors, m); idx >= 0 && factors[idx].Verified {
			methods = append(methods, m)
		}
	}
	return methods, nil
}

// guardReplace rejects a setup that would demote the principal's only
// verified factor back to Pending.
func guardReplace(ctx context.Context, principalID, method string, factors []stores.Factor, deps *RegistryDeps) error {
	idx := stores.FindFactor(factors, method)
	if idx < 0 || !factors[idx].Verified || stores.CountVerified(factors) > 1 {
		return nil
	}
	deps.MetricInc(deps.Metrics.PolicyViolation)
	deps.EmitAudit(ctx, deps.Events.PolicyViolation, false, principalID, method, deps.Errors.PolicyViolation, nil)
	return deps.Errors.PolicyViolation
}

func issueChallenge(ctx context.Context, principalID, method, contact string, deps *RegistryDeps) error {
	code, err := deps.NewChallengeCode(deps.ChallengeDigits)
	if err != nil {
		return deps.Errors.Unavailable
	}

	now := deps.Now()
	record := &stores.Challenge{
		PrincipalID: principalID,
		Method:      method,
		Code:        code,
		IssuedAt:    now,
		ExpiresAt:   now.Add(deps.ChallengeTTL),
	}
	if err := deps.SaveChallenge(ctx, record); err != nil {
		return deps.Errors.Unavailable
	}

	if err := deps.Deliver(ctx, method, contact, code, deps.ChallengeTTL); err != nil {
		_ = deps.DeleteChallenge(ctx, principalID)
		deps.MetricInc(deps.Metrics.ChallengeDeliveryError)
		deps.EmitAudit(ctx, deps.Events.ChallengeIssued, false, principalID, method, deps.Errors.NotificationFailed, nil)
		return errors.Join(deps.Errors.NotificationFailed, err)
	}

	deps.MetricInc(deps.Metrics.ChallengeIssued)
	deps.EmitAudit(ctx, deps.Events.ChallengeIssued, true, principalID, method, nil, nil)
	return nil
}

func upsertFactor(factors []stores.Factor, f stores.Factor) []stores.Factor {
	out := make([]stores.Factor, 0, len(factors)+1)
	replaced := false
	for _, existing := range factors {
		if existing.Method == f.Method {
			out = append(out, f)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, f)
	}
	return out
}

func normalizeRegistryDeps(deps *RegistryDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewChallengeCode == nil {
		deps.NewChallengeCode = func(int) (string, error) { return "", errors.New("no code generator") }
	}
	if deps.RandomIndex == nil {
		deps.RandomIndex = func(int) (int, error) { return 0, errors.New("no random source") }
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

// RunRemainingBackupCodes returns how many unused backup codes remain.
func RunRemainingBackupCodes(ctx context.Context, principalID string, deps RegistryDeps) (int, error) {
	normalizeRegistryDeps(&deps)

	if deps.LoadFactors == nil {
		return 0, deps.Errors.EngineNotReady
	}
	factors, err := deps.LoadFactors(ctx, principalID)
	if err != nil {
		return 0, deps.Errors.Unavailable
	}
	idx := stores.FindFactor(factors, MethodBackupCodes)
	if idx < 0 {
		return 0, nil
	}
	return len(factors[idx].BackupCodeHashes), nil
}
