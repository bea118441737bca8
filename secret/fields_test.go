package secret

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestEncryptFieldsSkipsAbsentAndNil(t *testing.T) {
	c := newTestCipher(t, testMasterKey)
	ctx := context.Background()

	record := map[string]any{
		"id":    "u-1",
		"email": "hello@example.com",
		"phone": nil,
	}
	out, meta, err := c.EncryptFields(ctx, record, "email", "phone", "ssn")
	if err != nil {
		t.Fatalf("EncryptFields: %v", err)
	}
	if len(meta.Fields) != 1 || meta.Fields[0] != "email" {
		t.Fatalf("unexpected metadata fields %v", meta.Fields)
	}
	if meta.EncryptedAt.IsZero() {
		t.Fatal("expected EncryptedAt to be set")
	}
	if _, ok := out["email"].(*Envelope); !ok {
		t.Fatalf("email not encrypted: %T", out["email"])
	}
	if out["phone"] != nil {
		t.Fatalf("nil field was encrypted: %v", out["phone"])
	}
	if _, ok := out["ssn"]; ok {
		t.Fatal("absent field was added")
	}
	if record["email"] != "hello@example.com" {
		t.Fatal("input record was modified")
	}
}

func TestDecryptFieldsParsesJSONAndKeepsStrings(t *testing.T) {
	c := newTestCipher(t, testMasterKey)
	ctx := context.Background()

	record := map[string]any{
		"email":   "hello@example.com",
		"address": map[string]any{"city": "Oslo"},
	}
	sealed, _, err := c.EncryptFields(ctx, record, "email", "address")
	if err != nil {
		t.Fatalf("EncryptFields: %v", err)
	}

	out := c.DecryptFields(ctx, sealed, "email", "address")
	if out["email"] != "hello@example.com" {
		t.Fatalf("unexpected email %v", out["email"])
	}
	addr, ok := out["address"].(map[string]any)
	if !ok || addr["city"] != "Oslo" {
		t.Fatalf("address not parsed as JSON: %#v", out["address"])
	}
}

func TestDecryptFieldsAcceptsStoredJSONEnvelopes(t *testing.T) {
	c := newTestCipher(t, testMasterKey)
	ctx := context.Background()

	sealed, _, err := c.EncryptFields(ctx, map[string]any{"email": "a@b.co"}, "email")
	if err != nil {
		t.Fatalf("EncryptFields: %v", err)
	}
	raw, err := json.Marshal(sealed)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var loaded map[string]any
	if err := json.Unmarshal(raw, &loaded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	out := c.DecryptFields(ctx, loaded, "email")
	if out["email"] != "a@b.co" {
		t.Fatalf("unexpected email %v", out["email"])
	}
}

func TestDecryptFieldsContainsPerFieldFailures(t *testing.T) {
	var logs bytes.Buffer
	c, err := New(testMasterKey, WithIterations(1000), WithLogger(zerolog.New(&logs)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	sealed, _, err := c.EncryptFields(ctx, map[string]any{
		"email": "hello@example.com",
		"phone": "+15551234567",
	}, "email", "phone")
	if err != nil {
		t.Fatalf("EncryptFields: %v", err)
	}
	corrupt := sealed["phone"].(*Envelope).Clone()
	corrupt.Tag[0] ^= 0xff
	sealed["phone"] = corrupt

	out := c.DecryptFields(ctx, sealed, "email", "phone")
	if out["email"] != "hello@example.com" {
		t.Fatalf("healthy field not decrypted: %v", out["email"])
	}
	if out["phone"] != corrupt {
		t.Fatalf("corrupt field should stay encrypted, got %T", out["phone"])
	}
	if !strings.Contains(logs.String(), `"field":"phone"`) {
		t.Fatalf("expected failure to be logged, got %q", logs.String())
	}
	if strings.Contains(logs.String(), "hello@example.com") || strings.Contains(logs.String(), "+1555") {
		t.Fatalf("log leaks plaintext: %q", logs.String())
	}
}

func TestWrapFieldsComposesAroundCall(t *testing.T) {
	c := newTestCipher(t, testMasterKey)
	ctx := context.Background()

	var seen map[string]any
	save := c.WrapFields([]string{"email"}, func(_ context.Context, record map[string]any) (map[string]any, error) {
		seen = record
		return record, nil
	})

	out, err := save(ctx, map[string]any{"id": "u-1", "email": "hello@example.com"})
	if err != nil {
		t.Fatalf("wrapped call: %v", err)
	}
	if _, ok := seen["email"].(*Envelope); !ok {
		t.Fatalf("inner call saw plaintext email: %T", seen["email"])
	}
	if out["email"] != "hello@example.com" || out["id"] != "u-1" {
		t.Fatalf("unexpected result %#v", out)
	}

	boom := errors.New("boom")
	failing := c.WrapFields([]string{"email"}, func(context.Context, map[string]any) (map[string]any, error) {
		return nil, boom
	})
	if _, err := failing(ctx, map[string]any{"email": "x"}); !errors.Is(err, boom) {
		t.Fatalf("expected inner error, got %v", err)
	}
}
