package store

//go:generate mockgen -source=store.go -destination=../internal/mock/store_mock.go -package=mock

import (
	"context"
	"errors"
)

// Kind names one category of per-principal state.
type Kind string

const (
	// KindFactors holds the enrolled factor list.
	KindFactors Kind = "factors"
	// KindPendingChallenge holds the single active SMS/email challenge.
	KindPendingChallenge Kind = "pendingChallenge"
	// KindLockout holds the lockout record.
	KindLockout Kind = "lockout"
	// KindTrustedDevices holds the trusted device ledger.
	KindTrustedDevices Kind = "trustedDevices"
)

// Kinds lists every Kind in a stable order.
var Kinds = []Kind{KindFactors, KindPendingChallenge, KindLockout, KindTrustedDevices}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFactors, KindPendingChallenge, KindLockout, KindTrustedDevices:
		return true
	default:
		return false
	}
}

var (
	// ErrNotFound is returned by Get when no document exists.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidKind is returned for kinds outside Kinds.
	ErrInvalidKind = errors.New("store: invalid kind")
	// ErrLockTimeout is returned by Locker implementations that give up waiting.
	ErrLockTimeout = errors.New("store: lock wait timed out")
)

// Store persists opaque documents per principal and kind.
//
// Get returns ErrNotFound when nothing is stored. Delete of a missing document
// is not an error. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, principalID string, kind Kind) ([]byte, error)
	Set(ctx context.Context, principalID string, kind Kind, value []byte) error
	Delete(ctx context.Context, principalID string, kind Kind) error
}

// Locker is implemented by stores that can serialize mutations for one
// principal across processes. The returned unlock func must be called exactly
// once.
type Locker interface {
	Lock(ctx context.Context, principalID string) (unlock func(), err error)
}
