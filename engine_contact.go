package goMFA

import (
	"context"
	"net/mail"
	"strings"

	"github.com/MrEthical07/goMFA/internal/flows"
)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

// SetupSMS registers phone as a Pending SMS factor and sends it a code.
//
// phone is matched against Contact.PhonePattern after spaces, dashes, dots
// and parentheses are removed; the normalized form is what gets stored. If
// the code cannot be delivered the call fails with ErrNotificationFailed and
// nothing is stored.
func (e *Engine) SetupSMS(ctx context.Context, principalID, phone string) error {
	normalized, ok := e.normalizePhone(phone)
	if !ok {
		return ErrValidation
	}
	return e.setupContact(ctx, principalID, flows.MethodSMS, normalized)
}

// SetupEmail registers email as a Pending email factor and sends it a code.
// Only a bare address is accepted, without a display name.
func (e *Engine) SetupEmail(ctx context.Context, principalID, email string) error {
	normalized, ok := normalizeEmail(email)
	if !ok {
		return ErrValidation
	}
	return e.setupContact(ctx, principalID, flows.MethodEmail, normalized)
}

// SendChallenge issues a fresh code for an already registered SMS or email
// factor, replacing any pending code. It fails with a *RateLimitedError
// while the principal is locked out.
func (e *Engine) SendChallenge(ctx context.Context, principalID string, method Method) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if principalID == "" || !flows.IsContactMethod(string(method)) {
		return ErrValidation
	}

	unlock, err := e.lockPrincipal(ctx, principalID)
	if err != nil {
		return err
	}
	defer unlock()

	return flows.RunIssueChallenge(ctx, principalID, string(method), e.registryFlowDeps(ctx, principalID, string(method)))
}

func (e *Engine) setupContact(ctx context.Context, principalID, method, contact string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if principalID == "" {
		return ErrValidation
	}

	unlock, err := e.lockPrincipal(ctx, principalID)
	if err != nil {
		return err
	}
	defer unlock()

	return flows.RunEnrollContact(ctx, principalID, method, contact, e.registryFlowDeps(ctx, principalID, method))
}

func (e *Engine) normalizePhone(phone string) (string, bool) {
	if e == nil || e.phone == nil {
		return "", false
	}
	p := phoneSeparators.Replace(strings.TrimSpace(phone))
	if p == "" || !e.phone.MatchString(p) {
		return "", false
	}
	return p, true
}

func normalizeEmail(email string) (string, bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return "", false
	}
	return addr.Address, true
}
