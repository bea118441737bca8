package limiters

import (
	"context"
	"time"

	"github.com/MrEthical07/goMFA/internal/stores"
)

// LockoutConfig holds the verification lockout policy.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// LockoutGuard decides whether a principal may attempt verification.
// States are Unlocked and Locked(until); there is no background timer, an
// expired record is removed by the next Check.
type LockoutGuard struct {
	repo   *stores.Repo
	config LockoutConfig
}

// NewLockoutGuard creates a guard over repo.
func NewLockoutGuard(repo *stores.Repo, cfg LockoutConfig) *LockoutGuard {
	return &LockoutGuard{repo: repo, config: cfg}
}

// Check reports whether principalID is locked at now and until when. A record
// with now past its expiry is deleted and reported as unlocked.
func (g *LockoutGuard) Check(ctx context.Context, principalID string, now time.Time) (time.Time, bool, error) {
	record, err := g.repo.Lockout(ctx, principalID)
	if err != nil || record == nil {
		return time.Time{}, false, err
	}
	if now.After(record.LockedUntil) {
		if err := g.repo.DeleteLockout(ctx, principalID); err != nil {
			return time.Time{}, false, err
		}
		return time.Time{}, false, nil
	}
	return record.LockedUntil, true, nil
}

// Exceeded reports whether attempts failed attempts trigger a lockout.
func (g *LockoutGuard) Exceeded(attempts int) bool {
	return g.config.Threshold > 0 && attempts >= g.config.Threshold
}

// Lock locks principalID until now plus the configured duration.
func (g *LockoutGuard) Lock(ctx context.Context, principalID string, now time.Time) (time.Time, error) {
	until := now.Add(g.config.Duration)
	err := g.repo.SaveLockout(ctx, &stores.Lockout{
		PrincipalID: principalID,
		LockedUntil: until,
	})
	if err != nil {
		return time.Time{}, err
	}
	return until, nil
}

// Clear unlocks principalID.
func (g *LockoutGuard) Clear(ctx context.Context, principalID string) error {
	return g.repo.DeleteLockout(ctx, principalID)
}
