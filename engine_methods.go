package goMFA

import (
	"context"

	"github.com/MrEthical07/goMFA/internal/flows"
	"github.com/MrEthical07/goMFA/internal/logger"
	"github.com/MrEthical07/goMFA/internal/stores"
	"github.com/MrEthical07/goMFA/secret"
)

// RemoveMFAMethod deletes the principal's factor for method.
//
// It fails with ErrNotFound when the method is not configured and with
// ErrPolicyViolation when the factor is the principal's only verified one.
// Removing an SMS or email factor also discards a code pending for it.
func (e *Engine) RemoveMFAMethod(ctx context.Context, principalID string, method Method) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if principalID == "" || !method.Valid() {
		return ErrValidation
	}

	unlock, err := e.lockPrincipal(ctx, principalID)
	if err != nil {
		return err
	}
	defer unlock()

	return flows.RunRemoveMethod(ctx, principalID, string(method), e.registryFlowDeps(ctx, principalID, string(method)))
}

// GetUserMFAMethods returns the principal's verified methods in the order
// totp, sms, email, backup_codes. Pending factors are not listed.
func (e *Engine) GetUserMFAMethods(ctx context.Context, principalID string) ([]Method, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if principalID == "" {
		return nil, ErrValidation
	}

	names, err := flows.RunVerifiedMethods(ctx, principalID, e.registryFlowDeps(ctx, principalID, ""))
	if err != nil {
		return nil, err
	}
	out := make([]Method, len(names))
	for i, n := range names {
		out[i] = Method(n)
	}
	return out, nil
}

// ListFactors returns every factor of the principal, pending ones included.
// Contact details are masked; secrets are never returned.
func (e *Engine) ListFactors(ctx context.Context, principalID string) ([]FactorInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if principalID == "" {
		return nil, ErrValidation
	}

	factors, err := e.loadFactors(ctx, principalID)
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	out := make([]FactorInfo, 0, len(factors))
	for _, m := range flows.MethodOrder {
		idx := stores.FindFactor(factors, m)
		if idx < 0 {
			continue
		}
		f := factors[idx]
		info := FactorInfo{
			Method:     Method(f.Method),
			Status:     FactorPending,
			CreatedAt:  f.CreatedAt,
			LastUsedAt: f.LastUsedAt,
		}
		if f.Verified {
			info.Status = FactorVerified
		}
		if f.Method == flows.MethodBackupCodes {
			info.RemainingBackupCodes = len(f.BackupCodeHashes)
		}
		if f.Contact != nil {
			info.Destination = e.maskedContact(ctx, principalID, f)
		}
		out = append(out, info)
	}
	return out, nil
}

func (e *Engine) maskedContact(ctx context.Context, principalID string, f stores.Factor) string {
	contact, err := e.decrypt(ctx, f.Contact)
	if err != nil {
		logger.FromContext(ctx, e.log).Warn().
			Err(err).
			Str("principal_id", principalID).
			Str("method", f.Method).
			Msg("contact decryption failed")
		return ""
	}
	if f.Method == flows.MethodSMS {
		return secret.MaskPhone(contact)
	}
	return secret.MaskEmail(contact)
}
