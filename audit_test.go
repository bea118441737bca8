package goMFA

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	internalaudit "github.com/MrEthical07/goMFA/internal/audit"
	"github.com/rs/zerolog"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *internalaudit.Dispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink, zerolog.Nop())
}

func collectEvents(sink *ChannelSink, n int) []AuditEvent {
	events := make([]AuditEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
	return events
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	f := newFixture(t, func(b *Builder) {
		b.WithAuditSink(sink)
		b.config.Audit.Enabled = false
	})

	f.enrollTOTP(t, "u1")
	f.engine.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no sink calls, got %d", sink.Count())
	}
}

func TestAuditEnabledSinkReceivesEventWithFields(t *testing.T) {
	sink := NewChannelSink(16)
	f := newFixture(t, func(b *Builder) { b.WithAuditSink(sink) })

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	setup, err := f.engine.SetupTOTP(ctx, "u1", "")
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}
	_ = f.engine.VerifyMFA(ctx, "u1", MethodTOTP, "99999999")

	events := collectEvents(sink, 2)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	enrolled := events[0]
	if enrolled.EventType != "factor_enrolled" || !enrolled.Success || enrolled.Method != "totp" {
		t.Fatalf("unexpected event %+v", enrolled)
	}
	if enrolled.PrincipalID != "u1" || enrolled.IP != "198.51.100.33" {
		t.Fatalf("unexpected principal or ip %+v", enrolled)
	}
	if !enrolled.Timestamp.Equal(f.clock.Now()) {
		t.Fatalf("unexpected timestamp %v", enrolled.Timestamp)
	}

	failed := events[1]
	if failed.EventType != "mfa_verify_failure" || failed.Success || failed.Error != "invalid_code" {
		t.Fatalf("unexpected event %+v", failed)
	}
	for _, ev := range events {
		if strings.Contains(ev.Error, setup.Secret) {
			t.Fatal("secret leaked in audit error")
		}
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sink := NewChannelSink(64)
	f := newFixture(t, func(b *Builder) {
		b.WithAuditSink(sink)
		b.config.Audit.DropIfFull = false
	})
	ctx := context.Background()

	if err := f.engine.SetupSMS(ctx, "u1", "+14155550123"); err != nil {
		t.Fatalf("SetupSMS: %v", err)
	}
	code := f.notifier.lastSMSCode(t)
	if err := f.engine.VerifyMFA(ctx, "u1", MethodSMS, code); err != nil {
		t.Fatalf("VerifyMFA: %v", err)
	}
	backup, err := f.engine.GenerateBackupCodes(ctx, "u1")
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	if err := f.engine.VerifyMFA(ctx, "u1", MethodBackupCodes, backup[0]); err != nil {
		t.Fatalf("VerifyMFA(backup): %v", err)
	}

	needles := append([]string{"+14155550123", "4155550123", code, testMasterKey}, backup...)
	events := collectEvents(sink, 6)
	if len(events) == 0 {
		t.Fatal("expected at least one audit event")
	}

	var sawRemaining bool
	for _, ev := range events {
		if ev.EventType == "backup_code_used" && ev.Metadata["remaining"] == "9" {
			sawRemaining = true
		}
		for _, needle := range needles {
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("sensitive value leaked in audit error field: %q", needle)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("sensitive value leaked in audit metadata: %q", needle)
				}
			}
		}
	}
	if !sawRemaining {
		t.Fatal("expected backup_code_used with remaining=9")
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   auditEventVerifySuccess,
		PrincipalID: "u1",
		Method:      "totp",
		IP:          "127.0.0.1",
		Success:     true,
	})

	if !buf.Contains("mfa_verify_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"principal_id\":\"u1\"") {
		t.Fatal("expected JSON log line to contain principal id")
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
}

func TestAuditErrorCodes(t *testing.T) {
	cases := map[error]AuditErrorCode{
		ErrInvalidCode:           auditErrInvalidCode,
		rateLimited(time.Minute): auditErrRateLimited,
		ErrDecryption:            auditErrDecryption,
		ErrStoreUnavailable:      auditErrUnavailable,
		ErrPolicyViolation:       auditErrPolicyViolation,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Fatalf("%v: expected %q, got %q", err, want, got)
		}
	}
	if auditErrorCode(nil) != "" {
		t.Fatal("nil error must not have a code")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(string(b.buf), v)
}
