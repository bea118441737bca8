package stores

import (
	"context"
	"errors"

	"github.com/MrEthical07/goMFA/store"
)

// Repo reads and writes typed MFA records through a store.Store.
type Repo struct {
	store store.Store
}

// NewRepo wraps s.
func NewRepo(s store.Store) *Repo {
	return &Repo{store: s}
}

func (r *Repo) get(ctx context.Context, principalID string, kind store.Kind) ([]byte, bool, error) {
	data, err := r.store.Get(ctx, principalID, kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, backendErr(err)
	}
	return data, true, nil
}

func (r *Repo) set(ctx context.Context, principalID string, kind store.Kind, data []byte) error {
	if err := r.store.Set(ctx, principalID, kind, data); err != nil {
		return backendErr(err)
	}
	return nil
}

func (r *Repo) del(ctx context.Context, principalID string, kind store.Kind) error {
	if err := r.store.Delete(ctx, principalID, kind); err != nil {
		return backendErr(err)
	}
	return nil
}
