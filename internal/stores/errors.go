package stores

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goMFA/store"
)

var (
	// ErrBackend wraps any failure reported by the underlying store.Store.
	ErrBackend = errors.New("mfa state backend unavailable")
	// ErrCorrupt is returned when a stored document cannot be decoded.
	ErrCorrupt = errors.New("mfa state record corrupt")
	// ErrChallengeNotFound is returned when no pending challenge exists.
	ErrChallengeNotFound = errors.New("mfa challenge not found")
)

func backendErr(err error) error {
	if errors.Is(err, store.ErrInvalidKind) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBackend, err)
}
