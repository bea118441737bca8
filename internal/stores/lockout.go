package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goMFA/store"
)

const lockoutRecordVersion1 = 1

// Lockout records until when a principal is denied verification.
type Lockout struct {
	PrincipalID string
	LockedUntil time.Time
}

// Lockout returns the principal's lockout record, or nil when there is none.
func (r *Repo) Lockout(ctx context.Context, principalID string) (*Lockout, error) {
	data, ok, err := r.get(ctx, principalID, store.KindLockout)
	if err != nil || !ok {
		return nil, err
	}
	if len(data) != 9 || data[0] != lockoutRecordVersion1 {
		return nil, fmt.Errorf("%w: lockout", ErrCorrupt)
	}
	var until int64
	if err := binary.Read(bytes.NewReader(data[1:]), binary.BigEndian, &until); err != nil {
		return nil, fmt.Errorf("%w: lockout", ErrCorrupt)
	}
	return &Lockout{
		PrincipalID: principalID,
		LockedUntil: time.UnixMilli(until).UTC(),
	}, nil
}

// SaveLockout writes the lockout record.
func (r *Repo) SaveLockout(ctx context.Context, record *Lockout) error {
	if record == nil {
		return errors.New("mfa lockout is nil")
	}
	var buf bytes.Buffer
	buf.WriteByte(lockoutRecordVersion1)
	if err := binary.Write(&buf, binary.BigEndian, record.LockedUntil.UnixMilli()); err != nil {
		return err
	}
	return r.set(ctx, record.PrincipalID, store.KindLockout, buf.Bytes())
}

// DeleteLockout clears the lockout record.
func (r *Repo) DeleteLockout(ctx context.Context, principalID string) error {
	return r.del(ctx, principalID, store.KindLockout)
}
