package goMFA

import (
	"errors"
	"regexp"
	"time"

	internalaudit "github.com/MrEthical07/goMFA/internal/audit"
	"github.com/MrEthical07/goMFA/internal/limiters"
	"github.com/MrEthical07/goMFA/internal/logger"
	"github.com/MrEthical07/goMFA/internal/stores"
	"github.com/MrEthical07/goMFA/metrics"
	"github.com/MrEthical07/goMFA/notify"
	"github.com/MrEthical07/goMFA/secret"
	"github.com/MrEthical07/goMFA/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Builder assembles an Engine. Builders are single use: configure during
// initialization, call Build once.
type Builder struct {
	config Config
	store  store.Store

	notifier  notify.Notifier
	recorder  metrics.Recorder
	auditSink AuditSink
	log       *logger.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. A master key set earlier with
// WithMasterKey is kept when cfg leaves it empty.
func (b *Builder) WithConfig(cfg Config) *Builder {
	if cfg.Cipher.MasterKey == "" {
		cfg.Cipher.MasterKey = b.config.Cipher.MasterKey
	}
	b.config = cfg
	return b
}

func (b *Builder) WithMasterKey(key string) *Builder {
	b.config.Cipher.MasterKey = key
	return b
}

// WithStore sets the state backend. If it also implements store.Locker,
// mutations are serialized across processes as well.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithNotifier sets the SMS and email transport. Without one, SMS and email
// operations fail with ErrEngineNotReady.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithMetricRecorder forwards every counter increment and latency sample to r
// in addition to the in-process counters.
func (b *Builder) WithMetricRecorder(r metrics.Recorder) *Builder {
	b.recorder = r
	return b
}

// WithAuditSink sets the audit destination and enables audit dispatch.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.log = logger.Wrap(l)
	return b
}

// WithClock overrides time.Now. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine. It fails
// fast with ErrConfiguration on a missing or short master key.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, configError("store is required")
	}

	log := b.log
	if log == nil {
		log = logger.Nop()
	}
	log = log.Child("mfa")

	opts := []secret.Option{
		secret.WithIterations(cfg.Cipher.KDFIterations),
		secret.WithLogger(log.Child("secret").Logger),
	}
	if cfg.Cipher.MaxConcurrentDerivations > 0 {
		opts = append(opts, secret.WithMaxConcurrentDerivations(cfg.Cipher.MaxConcurrentDerivations))
	}
	cipher, err := secret.New(cfg.Cipher.MasterKey, opts...)
	if err != nil {
		return nil, err
	}

	tm, err := newTOTPManager(cfg.TOTP)
	if err != nil {
		return nil, configError("TOTP Algorithm is not supported")
	}

	pattern := cfg.Contact.PhonePattern
	if pattern == "" {
		pattern = DefaultPhonePattern
	}
	phone, err := regexp.Compile(pattern)
	if err != nil {
		return nil, configError("Contact PhonePattern does not compile")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	repo := stores.NewRepo(b.store)
	engine := &Engine{
		config:   cfg,
		cipher:   cipher,
		repo:     repo,
		totp:     tm,
		notifier: b.notifier,
		recorder: b.recorder,
		log:      log,
		phone:    phone,
		clock:    clock,
		newID:    uuid.NewString,
	}
	engine.lockout = limiters.NewLockoutGuard(repo, limiters.LockoutConfig{
		Threshold: cfg.Lockout.MaxAttempts,
		Duration:  cfg.Lockout.Duration,
	})
	if l, ok := b.store.(store.Locker); ok {
		engine.locker = l
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, log.Child("audit").Logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
