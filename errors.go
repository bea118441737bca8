package goMFA

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goMFA/secret"
)

var (
	// ErrConfiguration is returned for a missing or too short master key and
	// for invalid engine configuration.
	ErrConfiguration = secret.ErrConfiguration
	// ErrEncryption is returned when sealing a secret fails.
	ErrEncryption = secret.ErrEncryption
	// ErrDecryption is returned for tampered envelopes, a wrong master key or
	// an unsupported envelope version.
	ErrDecryption = secret.ErrDecryption
	// ErrValidation is returned for malformed input such as a bad phone
	// number, email address or method name.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when the method is not configured for the principal.
	ErrNotFound = errors.New("mfa method not configured")
	// ErrPolicyViolation is returned when an operation would leave the
	// principal without a verified factor.
	ErrPolicyViolation = errors.New("policy violation")
	// ErrRateLimited is matched by every *RateLimitedError.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidCode is returned for a wrong TOTP, challenge or backup code.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrChallengeNotFound is returned when no SMS or email code is pending.
	ErrChallengeNotFound = errors.New("no pending challenge")
	// ErrChallengeExpired is returned when the pending code is past its expiry.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrNotificationFailed is returned when the notifier could not deliver a code.
	ErrNotificationFailed = errors.New("notification delivery failed")
	// ErrStoreUnavailable wraps state backend failures.
	ErrStoreUnavailable = errors.New("mfa store unavailable")
	// ErrEngineNotReady is returned by an Engine that was not built by a Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitedError reports an active lockout and how long it has left.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfter extracts the remaining lockout duration from err.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

func rateLimited(retryAfter time.Duration) error {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &RateLimitedError{RetryAfter: retryAfter}
}
