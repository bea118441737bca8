package goMFA

import (
	"context"

	"github.com/MrEthical07/goMFA/internal/flows"
)

// SetupTOTP creates or replaces the principal's authenticator-app factor.
//
// The factor is stored Pending with its secret encrypted; it becomes Verified
// on the first successful VerifyMFA with MethodTOTP. label names the account
// in the authenticator app and defaults to principalID. The returned secret
// and QR code are shown to the user once and cannot be retrieved later.
//
// Setting up TOTP again while it is the principal's only verified factor
// fails with ErrPolicyViolation.
func (e *Engine) SetupTOTP(ctx context.Context, principalID, label string) (*TOTPSetup, error) {
	if !e.ready() || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	if principalID == "" {
		return nil, ErrValidation
	}

	unlock, err := e.lockPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prov, err := flows.RunEnrollTOTP(ctx, principalID, label, e.registryFlowDeps(ctx, principalID, flows.MethodTOTP))
	if err != nil {
		return nil, err
	}
	return &TOTPSetup{
		Secret: prov.Secret,
		URI:    prov.URI,
		QRCode: prov.QRCode,
	}, nil
}
