package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goMFA/internal/stores"
)

// DeviceInput describes the device being trusted. Empty IP and user agent
// are filled from the request context when the hooks are set.
type DeviceInput struct {
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

type DeviceDeps struct {
	Now      func() time.Time
	TrustTTL time.Duration
	NewID    func() string

	LoadDevices  func(context.Context, string) ([]stores.TrustedDevice, error)
	AppendDevice func(context.Context, stores.TrustedDevice) error

	ClientIPFromContext  func(context.Context) string
	UserAgentFromContext func(context.Context) string

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)

	MetricDeviceTrusted int
	EventDeviceTrusted  string

	ErrEngineNotReady error
	ErrValidation     error
	ErrUnavailable    error
}

// RunTrustDevice appends a ledger entry for the device. Existing entries for
// the same device are left in place.
func RunTrustDevice(ctx context.Context, principalID string, in DeviceInput, deps DeviceDeps) (stores.TrustedDevice, error) {
	normalizeDeviceDeps(&deps)

	if deps.AppendDevice == nil || deps.NewID == nil {
		return stores.TrustedDevice{}, deps.ErrEngineNotReady
	}
	if principalID == "" || in.DeviceID == "" {
		return stores.TrustedDevice{}, deps.ErrValidation
	}

	if in.IPAddress == "" {
		in.IPAddress = deps.ClientIPFromContext(ctx)
	}
	if in.UserAgent == "" {
		in.UserAgent = deps.UserAgentFromContext(ctx)
	}

	now := deps.Now()
	device := stores.TrustedDevice{
		ID:          deps.NewID(),
		PrincipalID: principalID,
		DeviceID:    in.DeviceID,
		DeviceName:  in.DeviceName,
		IPAddress:   in.IPAddress,
		UserAgent:   in.UserAgent,
		CreatedAt:   now,
		LastUsedAt:  now,
	}
	if err := deps.AppendDevice(ctx, device); err != nil {
		return stores.TrustedDevice{}, deps.ErrUnavailable
	}

	deps.MetricInc(deps.MetricDeviceTrusted)
	deps.EmitAudit(ctx, deps.EventDeviceTrusted, true, principalID, "", nil, func() map[string]string {
		return map[string]string{"deviceId": device.DeviceID}
	})
	return device, nil
}

// RunIsTrustedDevice reports whether any ledger entry for deviceID was last
// used less than TrustTTL ago. Lookups do not refresh LastUsedAt.
func RunIsTrustedDevice(ctx context.Context, principalID, deviceID string, deps DeviceDeps) (bool, error) {
	normalizeDeviceDeps(&deps)

	if deps.LoadDevices == nil {
		return false, deps.ErrEngineNotReady
	}
	if principalID == "" || deviceID == "" {
		return false, nil
	}

	devices, err := deps.LoadDevices(ctx, principalID)
	if err != nil {
		return false, deps.ErrUnavailable
	}
	now := deps.Now()
	for _, d := range devices {
		if d.DeviceID == deviceID && deviceActive(d, now, deps.TrustTTL) {
			return true, nil
		}
	}
	return false, nil
}

// RunActiveDevices returns ledger entries still inside the trust window.
func RunActiveDevices(ctx context.Context, principalID string, deps DeviceDeps) ([]stores.TrustedDevice, error) {
	normalizeDeviceDeps(&deps)

	if deps.LoadDevices == nil {
		return nil, deps.ErrEngineNotReady
	}
	devices, err := deps.LoadDevices(ctx, principalID)
	if err != nil {
		return nil, deps.ErrUnavailable
	}
	now := deps.Now()
	active := make([]stores.TrustedDevice, 0, len(devices))
	for _, d := range devices {
		if deviceActive(d, now, deps.TrustTTL) {
			active = append(active, d)
		}
	}
	return active, nil
}

func deviceActive(d stores.TrustedDevice, now time.Time, ttl time.Duration) bool {
	return now.Sub(d.LastUsedAt) < ttl
}

func normalizeDeviceDeps(deps *DeviceDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.UserAgentFromContext == nil {
		deps.UserAgentFromContext = func(context.Context) string { return "" }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
}
