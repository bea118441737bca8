package secret

import (
	"context"
	"encoding/json"
	"maps"
	"time"
)

// FieldMetadata records which fields EncryptFields sealed and when.
type FieldMetadata struct {
	Fields      []string
	EncryptedAt time.Time
}

// RecordFunc is an operation over a loosely typed record, such as a
// repository write or read.
type RecordFunc func(ctx context.Context, record map[string]any) (map[string]any, error)

// EncryptFields returns a copy of record with every named, non-nil field
// replaced by its *Envelope. Absent and nil fields are skipped. The input map
// is not modified.
func (c *Cipher) EncryptFields(ctx context.Context, record map[string]any, fields ...string) (map[string]any, FieldMetadata, error) {
	meta := FieldMetadata{EncryptedAt: time.Now().UTC()}
	if record == nil {
		return nil, meta, nil
	}

	out := maps.Clone(record)
	for _, field := range fields {
		v, ok := out[field]
		if !ok || v == nil {
			continue
		}
		env, err := c.Encrypt(ctx, v)
		if err != nil {
			return nil, FieldMetadata{}, err
		}
		out[field] = env
		meta.Fields = append(meta.Fields, field)
	}
	return out, meta, nil
}

// DecryptFields returns a copy of record with every named field that holds an
// envelope replaced by its plaintext, parsed as JSON when possible. A field
// that fails to decrypt keeps its envelope and the failure is logged; other
// fields are still processed.
func (c *Cipher) DecryptFields(ctx context.Context, record map[string]any, fields ...string) map[string]any {
	if record == nil {
		return nil
	}

	out := maps.Clone(record)
	for _, field := range fields {
		env, ok := envelopeFrom(out[field])
		if !ok {
			continue
		}
		plaintext, err := c.Decrypt(ctx, env)
		if err != nil {
			c.log.Warn().
				Str("field", field).
				Int("envelope_version", env.Version).
				Err(err).
				Msg("field left encrypted")
			continue
		}
		out[field] = parsePlaintext(plaintext)
	}
	return out
}

// WrapFields composes next with field protection: the named fields are
// encrypted before next runs and decrypted in whatever next returns.
func (c *Cipher) WrapFields(fields []string, next RecordFunc) RecordFunc {
	names := append([]string(nil), fields...)
	return func(ctx context.Context, record map[string]any) (map[string]any, error) {
		sealed, _, err := c.EncryptFields(ctx, record, names...)
		if err != nil {
			return nil, err
		}
		result, err := next(ctx, sealed)
		if err != nil {
			return nil, err
		}
		return c.DecryptFields(ctx, result, names...), nil
	}
}

func envelopeFrom(v any) (*Envelope, bool) {
	switch t := v.(type) {
	case *Envelope:
		return t, t != nil
	case Envelope:
		return &t, true
	case map[string]any:
		if _, ok := t["encrypted"]; !ok {
			return nil, false
		}
		if _, ok := t["tag"]; !ok {
			return nil, false
		}
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, false
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, false
		}
		return &env, true
	default:
		return nil, false
	}
}

func parsePlaintext(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}
