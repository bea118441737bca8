package goMFA

import (
	"context"

	"github.com/MrEthical07/goMFA/internal/flows"
)

// VerifyMFA checks code for the principal's factor of the given method.
//
// While the principal is locked out every call fails with a
// *RateLimitedError without examining the code. Missing factors fail with
// ErrNotFound and wrong codes with ErrInvalidCode. SMS and email codes fail
// with ErrChallengeNotFound or ErrChallengeExpired when no usable code is
// pending; the attempt that reaches Lockout.MaxAttempts locks the principal
// for Lockout.Duration and returns a *RateLimitedError.
//
// On success a Pending factor becomes Verified, a used backup code is
// consumed and any lockout is cleared.
func (e *Engine) VerifyMFA(ctx context.Context, principalID string, method Method, code string) error {
	if !e.ready() || e.totp == nil {
		return ErrEngineNotReady
	}
	if principalID == "" || !method.Valid() || code == "" {
		return ErrValidation
	}

	started := e.now()
	defer e.observeLatency(ctx, string(method), started)

	unlock, err := e.lockPrincipal(ctx, principalID)
	if err != nil {
		return err
	}
	defer unlock()

	return flows.RunVerify(ctx, principalID, string(method), code, e.verifyFlowDeps(ctx, string(method)))
}

// LockoutStatus reports whether the principal is currently locked out.
func (e *Engine) LockoutStatus(ctx context.Context, principalID string) (LockoutStatus, error) {
	if !e.ready() {
		return LockoutStatus{}, ErrEngineNotReady
	}
	if principalID == "" {
		return LockoutStatus{}, ErrValidation
	}

	now := e.now()
	until, locked, err := e.checkLockout(ctx, principalID, now)
	if err != nil {
		return LockoutStatus{}, ErrStoreUnavailable
	}
	if !locked {
		return LockoutStatus{}, nil
	}
	return LockoutStatus{Locked: true, Until: until, RetryAfter: until.Sub(now)}, nil
}

// RequiresChallenge reports whether a sign-in from deviceID needs a second
// factor: the principal has at least one verified factor and the device is
// not trusted.
func (e *Engine) RequiresChallenge(ctx context.Context, principalID, deviceID string) (bool, error) {
	methods, err := e.GetUserMFAMethods(ctx, principalID)
	if err != nil {
		return false, err
	}
	if len(methods) == 0 {
		return false, nil
	}
	trusted, err := e.IsTrustedDevice(ctx, principalID, deviceID)
	if err != nil {
		return false, err
	}
	return !trusted, nil
}
