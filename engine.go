package goMFA

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/MrEthical07/goMFA/internal"
	internalaudit "github.com/MrEthical07/goMFA/internal/audit"
	"github.com/MrEthical07/goMFA/internal/flows"
	"github.com/MrEthical07/goMFA/internal/keylock"
	"github.com/MrEthical07/goMFA/internal/limiters"
	"github.com/MrEthical07/goMFA/internal/logger"
	"github.com/MrEthical07/goMFA/internal/stores"
	"github.com/MrEthical07/goMFA/metrics"
	"github.com/MrEthical07/goMFA/notify"
	"github.com/MrEthical07/goMFA/secret"
	"github.com/MrEthical07/goMFA/store"
)

// Engine enrolls and verifies second factors for principals. It holds no
// per-principal state of its own; everything lives in the configured Store.
//
// An Engine is safe for concurrent use. Mutating operations for the same
// principal are serialized.
type Engine struct {
	config   Config
	cipher   *secret.Cipher
	repo     *stores.Repo
	locker   store.Locker
	keys     keylock.Map
	lockout  *limiters.LockoutGuard
	totp     *totpManager
	notifier notify.Notifier
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	recorder metrics.Recorder
	log      *logger.Logger
	phone    *regexp.Regexp
	clock    func() time.Time
	newID    func() string
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped so far.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Cipher returns the secret cipher bound to the engine's master key, for
// field-level encryption of host records.
func (e *Engine) Cipher() *secret.Cipher {
	if e == nil {
		return nil
	}
	return e.cipher
}

func (e *Engine) ready() bool {
	return e != nil && e.repo != nil && e.cipher != nil && e.lockout != nil
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

// lockPrincipal serializes mutations for principalID in process and, when
// the store supports it, across processes. A done ctx is returned as is;
// locker failures are logged and reported as ErrStoreUnavailable.
func (e *Engine) lockPrincipal(ctx context.Context, principalID string) (func(), error) {
	unlockLocal, err := e.keys.Lock(ctx, principalID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, ErrStoreUnavailable
	}
	if e.locker == nil {
		return unlockLocal, nil
	}

	unlockRemote, err := e.locker.Lock(ctx, principalID)
	if err != nil {
		unlockLocal()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.storeFailed(ctx, "lock", principalID, err)
		return nil, ErrStoreUnavailable
	}
	return func() {
		unlockRemote()
		unlockLocal()
	}, nil
}

/*
====================================
STORE ACCESS
====================================
*/

func (e *Engine) storeFailed(ctx context.Context, op, principalID string, err error) {
	if err == nil {
		return
	}
	logger.FromContext(ctx, e.log).Error().
		Err(err).
		Str("op", op).
		Str("principal_id", principalID).
		Msg("mfa store operation failed")
}

func (e *Engine) loadFactors(ctx context.Context, principalID string) ([]stores.Factor, error) {
	factors, err := e.repo.Factors(ctx, principalID)
	e.storeFailed(ctx, "load_factors", principalID, err)
	return factors, err
}

func (e *Engine) saveFactors(ctx context.Context, principalID string, factors []stores.Factor) error {
	err := e.repo.SaveFactors(ctx, principalID, factors)
	e.storeFailed(ctx, "save_factors", principalID, err)
	return err
}

func (e *Engine) loadChallenge(ctx context.Context, principalID string) (*stores.Challenge, error) {
	ch, err := e.repo.Challenge(ctx, principalID)
	if err != nil && !errors.Is(err, stores.ErrChallengeNotFound) {
		e.storeFailed(ctx, "load_challenge", principalID, err)
	}
	return ch, err
}

func (e *Engine) saveChallenge(ctx context.Context, ch *stores.Challenge) error {
	err := e.repo.SaveChallenge(ctx, ch)
	e.storeFailed(ctx, "save_challenge", ch.PrincipalID, err)
	return err
}

func (e *Engine) deleteChallenge(ctx context.Context, principalID string) error {
	err := e.repo.DeleteChallenge(ctx, principalID)
	e.storeFailed(ctx, "delete_challenge", principalID, err)
	return err
}

func (e *Engine) checkLockout(ctx context.Context, principalID string, now time.Time) (time.Time, bool, error) {
	until, locked, err := e.lockout.Check(ctx, principalID, now)
	e.storeFailed(ctx, "check_lockout", principalID, err)
	return until, locked, err
}

func (e *Engine) lock(ctx context.Context, principalID string, now time.Time) (time.Time, error) {
	until, err := e.lockout.Lock(ctx, principalID, now)
	if err != nil {
		e.storeFailed(ctx, "lock", principalID, err)
		return until, err
	}
	logger.FromContext(ctx, e.log).Info().
		Str("principal_id", principalID).
		Time("locked_until", until).
		Msg("principal locked")
	return until, nil
}

func (e *Engine) clearLockout(ctx context.Context, principalID string) error {
	err := e.lockout.Clear(ctx, principalID)
	e.storeFailed(ctx, "clear_lockout", principalID, err)
	return err
}

func (e *Engine) loadDevices(ctx context.Context, principalID string) ([]stores.TrustedDevice, error) {
	devices, err := e.repo.Devices(ctx, principalID)
	e.storeFailed(ctx, "load_devices", principalID, err)
	return devices, err
}

func (e *Engine) appendDevice(ctx context.Context, device stores.TrustedDevice) error {
	err := e.repo.AppendDevice(ctx, device)
	e.storeFailed(ctx, "append_device", device.PrincipalID, err)
	return err
}

/*
====================================
CRYPTO AND DELIVERY
====================================
*/

func (e *Engine) encrypt(ctx context.Context, plaintext string) (*secret.Envelope, error) {
	return e.cipher.Encrypt(ctx, plaintext)
}

func (e *Engine) decrypt(ctx context.Context, env *secret.Envelope) (string, error) {
	return e.cipher.Decrypt(ctx, env)
}

func (e *Engine) deliver(ctx context.Context, principalID, method, contact, code string, ttl time.Duration) error {
	minutes := int(math.Ceil(ttl.Minutes()))

	var err error
	switch method {
	case flows.MethodSMS:
		err = e.notifier.SendSMS(ctx, contact,
			fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes))
	case flows.MethodEmail:
		err = e.notifier.SendEmail(ctx, notify.Email{
			To:       contact,
			Subject:  "Your verification code",
			Template: "mfa-code",
			Data: map[string]any{
				"code":             code,
				"expiresInMinutes": minutes,
			},
		})
	default:
		return ErrValidation
	}
	if err != nil {
		logger.FromContext(ctx, e.log).Warn().
			Err(err).
			Str("principal_id", principalID).
			Str("method", method).
			Msg("challenge delivery failed")
	}
	return err
}

/*
====================================
FLOW DEPENDENCIES
====================================
*/

func (e *Engine) metricFunc(ctx context.Context, method string) func(int) {
	return func(id int) {
		e.metricInc(ctx, MetricID(id), method)
	}
}

func (e *Engine) registryFlowDeps(ctx context.Context, principalID, method string) flows.RegistryDeps {
	deps := flows.RegistryDeps{
		Now:              e.now,
		BackupCodeCount:  e.config.BackupCodes.Count,
		BackupCodeLength: e.config.BackupCodes.Length,
		ChallengeTTL:     e.config.Challenge.TTL,
		ChallengeDigits:  e.config.Challenge.CodeDigits,
		LoadFactors:      e.loadFactors,
		SaveFactors:      e.saveFactors,
		LoadChallenge:    e.loadChallenge,
		SaveChallenge:    e.saveChallenge,
		DeleteChallenge:  e.deleteChallenge,
		CheckLockout:     e.checkLockout,
		Encrypt:          e.encrypt,
		Decrypt:          e.decrypt,
		Hash:             e.cipher.Hash,
		NewTOTPKey:       e.totp.Provision,
		NewChallengeCode: internal.NewOTP,
		RandomIndex:      internal.RandomIndex,
		MetricInc:        e.metricFunc(ctx, method),
		EmitAudit:        e.emitAudit,
		Metrics: flows.RegistryMetrics{
			FactorEnrolled:         int(MetricFactorEnrolled),
			FactorRemoved:          int(MetricFactorRemoved),
			ChallengeIssued:        int(MetricChallengeIssued),
			ChallengeDeliveryError: int(MetricChallengeDeliveryFailed),
			BackupCodesGenerated:   int(MetricBackupCodesGenerated),
			PolicyViolation:        int(MetricPolicyViolation),
		},
		Events: flows.RegistryEvents{
			FactorEnrolled:       auditEventFactorEnrolled,
			FactorRemoved:        auditEventFactorRemoved,
			ChallengeIssued:      auditEventChallengeIssued,
			BackupCodesGenerated: auditEventBackupCodesGenerated,
			PolicyViolation:      auditEventPolicyViolation,
		},
		Errors: flows.RegistryErrors{
			EngineNotReady:     ErrEngineNotReady,
			Validation:         ErrValidation,
			NotFound:           ErrNotFound,
			PolicyViolation:    ErrPolicyViolation,
			Unavailable:        ErrStoreUnavailable,
			NotificationFailed: ErrNotificationFailed,
			RateLimited:        rateLimited,
		},
	}
	if e.notifier != nil {
		deps.Deliver = func(ctx context.Context, method, contact, code string, ttl time.Duration) error {
			return e.deliver(ctx, principalID, method, contact, code, ttl)
		}
	}
	return deps
}

func (e *Engine) verifyFlowDeps(ctx context.Context, method string) flows.VerifyDeps {
	return flows.VerifyDeps{
		Now:             e.now,
		LoadFactors:     e.loadFactors,
		SaveFactors:     e.saveFactors,
		LoadChallenge:   e.loadChallenge,
		SaveChallenge:   e.saveChallenge,
		DeleteChallenge: e.deleteChallenge,
		CheckLockout:    e.checkLockout,
		LockoutExceeded: e.lockout.Exceeded,
		Lock:            e.lock,
		ClearLockout:    e.clearLockout,
		Decrypt:         e.decrypt,
		Hash:            e.cipher.Hash,
		ValidateTOTP:    e.totp.Validate,
		MetricInc:       e.metricFunc(ctx, method),
		EmitAudit:       e.emitAudit,
		Metrics: flows.VerifyMetrics{
			Success:          int(MetricVerificationSuccess),
			Failure:          int(MetricVerificationFailed),
			RateLimited:      int(MetricVerificationRateLimited),
			LockoutTriggered: int(MetricLockoutTriggered),
			BackupCodeUsed:   int(MetricBackupCodeUsed),
		},
		Events: flows.VerifyEvents{
			Success:          auditEventVerifySuccess,
			Failure:          auditEventVerifyFailure,
			RateLimited:      auditEventVerifyRateLimited,
			LockoutTriggered: auditEventLockoutTriggered,
			BackupCodeUsed:   auditEventBackupCodeUsed,
		},
		Errors: flows.VerifyErrors{
			EngineNotReady:    ErrEngineNotReady,
			Validation:        ErrValidation,
			NotFound:          ErrNotFound,
			InvalidCode:       ErrInvalidCode,
			ChallengeNotFound: ErrChallengeNotFound,
			ChallengeExpired:  ErrChallengeExpired,
			Unavailable:       ErrStoreUnavailable,
			RateLimited:       rateLimited,
		},
	}
}

func (e *Engine) deviceFlowDeps(ctx context.Context) flows.DeviceDeps {
	return flows.DeviceDeps{
		Now:                  e.now,
		TrustTTL:             e.config.TrustedDevice.TTL,
		NewID:                e.newID,
		LoadDevices:          e.loadDevices,
		AppendDevice:         e.appendDevice,
		ClientIPFromContext:  clientIPFromContext,
		UserAgentFromContext: userAgentFromContext,
		MetricInc:            e.metricFunc(ctx, ""),
		EmitAudit:            e.emitAudit,
		MetricDeviceTrusted:  int(MetricDeviceTrusted),
		EventDeviceTrusted:   auditEventDeviceTrusted,
		ErrEngineNotReady:    ErrEngineNotReady,
		ErrValidation:        ErrValidation,
		ErrUnavailable:       ErrStoreUnavailable,
	}
}
