package goMFA

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goMFA/notify"
	"github.com/MrEthical07/goMFA/store"
	"github.com/MrEthical07/goMFA/store/memory"
)

const testMasterKey = "test-master-key-0123456789abcdef-xyz"

var benchCtx = context.Background()

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingNotifier keeps every message it was asked to deliver.
type recordingNotifier struct {
	mu     sync.Mutex
	sms    []string
	emails []notify.Email
	err    error
}

func (n *recordingNotifier) SendSMS(_ context.Context, phone, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sms = append(n.sms, message)
	return nil
}

func (n *recordingNotifier) SendEmail(_ context.Context, email notify.Email) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.emails = append(n.emails, email)
	return nil
}

func (n *recordingNotifier) lastSMSCode(t testing.TB) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sms) == 0 {
		t.Fatal("no sms sent")
	}
	return codeFromMessage(t, n.sms[len(n.sms)-1])
}

func (n *recordingNotifier) lastEmailCode(t testing.TB) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.emails) == 0 {
		t.Fatal("no email sent")
	}
	code, _ := n.emails[len(n.emails)-1].Data["code"].(string)
	if code == "" {
		t.Fatal("email carried no code")
	}
	return code
}

func codeFromMessage(t testing.TB, msg string) string {
	t.Helper()
	const prefix = "Your verification code is "
	if len(msg) < len(prefix)+6 || msg[:len(prefix)] != prefix {
		t.Fatalf("unexpected message %q", msg)
	}
	rest := msg[len(prefix):]
	for i, r := range rest {
		if r < '0' || r > '9' {
			return rest[:i]
		}
	}
	return rest
}

type engineFixture struct {
	engine   *Engine
	clock    *fakeClock
	notifier *recordingNotifier
	store    store.Store
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Cipher.MasterKey = testMasterKey
	cfg.Cipher.KDFIterations = 10_000
	return cfg
}

func newFixture(t testing.TB, opts ...func(*Builder)) *engineFixture {
	t.Helper()
	f := &engineFixture{
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
		store:    memory.New(),
	}
	b := New().
		WithConfig(testConfig()).
		WithStore(f.store).
		WithNotifier(f.notifier).
		WithClock(f.clock.Now)
	for _, opt := range opts {
		opt(b)
	}
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(e.Close)
	f.engine = e
	return f
}

func newBenchEngine(b *testing.B) *Engine {
	return newFixture(b).engine
}

// enrollTOTP sets up and confirms TOTP for principalID and returns its secret.
func (f *engineFixture) enrollTOTP(t testing.TB, principalID string) string {
	t.Helper()
	setup, err := f.engine.SetupTOTP(context.Background(), principalID, "")
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}
	if err := f.engine.VerifyMFA(context.Background(), principalID, MethodTOTP, f.totpCode(t, setup.Secret)); err != nil {
		t.Fatalf("VerifyMFA(totp): %v", err)
	}
	return setup.Secret
}

func (f *engineFixture) totpCode(t testing.TB, secret string) string {
	t.Helper()
	code, err := f.engine.totp.Code(secret, f.clock.Now())
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}
	return code
}
