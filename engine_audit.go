package goMFA

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/goMFA/internal/audit"
)

const (
	auditEventFactorEnrolled       = "factor_enrolled"
	auditEventFactorRemoved        = "factor_removed"
	auditEventChallengeIssued      = "challenge_issued"
	auditEventBackupCodesGenerated = "backup_codes_generated"
	auditEventBackupCodeUsed       = "backup_code_used"
	auditEventPolicyViolation      = "policy_violation"
	auditEventVerifySuccess        = "mfa_verify_success"
	auditEventVerifyFailure        = "mfa_verify_failure"
	auditEventVerifyRateLimited    = "mfa_verify_rate_limited"
	auditEventLockoutTriggered     = "lockout_triggered"
	auditEventDeviceTrusted        = "device_trusted"
)

// AuditErrorCode is the stable error classification written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrValidation         AuditErrorCode = "validation"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrPolicyViolation    AuditErrorCode = "policy_violation"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrChallengeNotFound  AuditErrorCode = "challenge_not_found"
	auditErrChallengeExpired   AuditErrorCode = "challenge_expired"
	auditErrNotificationFailed AuditErrorCode = "notification_failed"
	auditErrDecryption         AuditErrorCode = "decryption_failed"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principalID string,
	method string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil || eventType == "" {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := internalaudit.Event{
		Timestamp:   e.now().UTC(),
		EventType:   eventType,
		PrincipalID: principalID,
		Method:      method,
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrPolicyViolation):
		return auditErrPolicyViolation
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrChallengeNotFound):
		return auditErrChallengeNotFound
	case errors.Is(err, ErrChallengeExpired):
		return auditErrChallengeExpired
	case errors.Is(err, ErrNotificationFailed):
		return auditErrNotificationFailed
	case errors.Is(err, ErrDecryption):
		return auditErrDecryption
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
