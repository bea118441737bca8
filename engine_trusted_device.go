package goMFA

import (
	"context"

	"github.com/MrEthical07/goMFA/internal/flows"
	"github.com/MrEthical07/goMFA/internal/stores"
)

// TrustDevice appends device to the principal's trusted device ledger.
// Trusting the same device twice adds a second entry. Empty IPAddress and
// UserAgent are taken from WithClientIP and WithUserAgent values on ctx.
func (e *Engine) TrustDevice(ctx context.Context, principalID string, device DeviceInfo) (*TrustedDevice, error) {
	if !e.ready() || e.newID == nil {
		return nil, ErrEngineNotReady
	}
	if principalID == "" || device.DeviceID == "" {
		return nil, ErrValidation
	}

	unlock, err := e.lockPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := flows.RunTrustDevice(ctx, principalID, flows.DeviceInput{
		DeviceID:   device.DeviceID,
		DeviceName: device.DeviceName,
		IPAddress:  device.IPAddress,
		UserAgent:  device.UserAgent,
	}, e.deviceFlowDeps(ctx))
	if err != nil {
		return nil, err
	}
	out := e.trustedDevice(rec)
	return &out, nil
}

// IsTrustedDevice reports whether deviceID was trusted within
// TrustedDevice.TTL. Checking does not extend the window.
func (e *Engine) IsTrustedDevice(ctx context.Context, principalID, deviceID string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	return flows.RunIsTrustedDevice(ctx, principalID, deviceID, e.deviceFlowDeps(ctx))
}

// ListTrustedDevices returns ledger entries still inside the trust window.
func (e *Engine) ListTrustedDevices(ctx context.Context, principalID string) ([]TrustedDevice, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if principalID == "" {
		return nil, ErrValidation
	}

	recs, err := flows.RunActiveDevices(ctx, principalID, e.deviceFlowDeps(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]TrustedDevice, len(recs))
	for i, rec := range recs {
		out[i] = e.trustedDevice(rec)
	}
	return out, nil
}

func (e *Engine) trustedDevice(rec stores.TrustedDevice) TrustedDevice {
	return TrustedDevice{
		ID:         rec.ID,
		DeviceID:   rec.DeviceID,
		DeviceName: rec.DeviceName,
		IPAddress:  rec.IPAddress,
		UserAgent:  rec.UserAgent,
		CreatedAt:  rec.CreatedAt,
		LastUsedAt: rec.LastUsedAt,
		ExpiresAt:  rec.LastUsedAt.Add(e.config.TrustedDevice.TTL),
	}
}
