package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/goMFA/store"
)

const challengeRecordVersion1 = 1

// Challenge is the single pending SMS/email code of a principal.
type Challenge struct {
	PrincipalID string
	Method      string
	Code        string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Attempts    uint16
}

// Expired reports whether the challenge is past its expiry at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Challenge returns the pending challenge or ErrChallengeNotFound.
func (r *Repo) Challenge(ctx context.Context, principalID string) (*Challenge, error) {
	data, ok, err := r.get(ctx, principalID, store.KindPendingChallenge)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrChallengeNotFound
	}
	record, err := decodeChallenge(data)
	if err != nil {
		return nil, fmt.Errorf("%w: challenge", ErrCorrupt)
	}
	return record, nil
}

// SaveChallenge overwrites the pending challenge slot.
func (r *Repo) SaveChallenge(ctx context.Context, record *Challenge) error {
	data, err := encodeChallenge(record)
	if err != nil {
		return err
	}
	return r.set(ctx, record.PrincipalID, store.KindPendingChallenge, data)
}

// DeleteChallenge clears the pending challenge slot.
func (r *Repo) DeleteChallenge(ctx context.Context, principalID string) error {
	return r.del(ctx, principalID, store.KindPendingChallenge)
}

func encodeChallenge(record *Challenge) ([]byte, error) {
	if record == nil {
		return nil, errors.New("mfa challenge is nil")
	}
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	for _, s := range []string{record.PrincipalID, record.Method, record.Code} {
		if err := writeString(&buf, s); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeChallenge(data []byte) (*Challenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid mfa challenge version")
	}

	record := &Challenge{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	var issuedAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &issuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, err
	}
	record.IssuedAt = time.UnixMilli(issuedAt).UTC()
	record.ExpiresAt = time.UnixMilli(expiresAt).UTC()

	if record.PrincipalID, err = readString(reader); err != nil {
		return nil, err
	}
	if record.Method, err = readString(reader); err != nil {
		return nil, err
	}
	if record.Code, err = readString(reader); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in mfa challenge")
	}
	return record, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("mfa record field length exceeded")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", err
	}
	return string(b), nil
}
