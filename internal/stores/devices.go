package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/goMFA/store"
)

const devicesDocVersion1 = 1

// TrustedDevice is one entry of the append-only trusted device ledger.
type TrustedDevice struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principalId"`
	DeviceID    string    `json:"deviceId"`
	DeviceName  string    `json:"deviceName"`
	IPAddress   string    `json:"ipAddress"`
	UserAgent   string    `json:"userAgent"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
}

type devicesDoc struct {
	V       int             `json:"v"`
	Devices []TrustedDevice `json:"devices"`
}

// Devices returns the ledger in insertion order.
func (r *Repo) Devices(ctx context.Context, principalID string) ([]TrustedDevice, error) {
	data, ok, err := r.get(ctx, principalID, store.KindTrustedDevices)
	if err != nil || !ok {
		return nil, err
	}

	var doc devicesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: trusted devices", ErrCorrupt)
	}
	if doc.V != devicesDocVersion1 {
		return nil, fmt.Errorf("%w: trusted devices version %d", ErrCorrupt, doc.V)
	}
	return doc.Devices, nil
}

// AppendDevice adds device to the end of the ledger.
func (r *Repo) AppendDevice(ctx context.Context, device TrustedDevice) error {
	devices, err := r.Devices(ctx, device.PrincipalID)
	if err != nil {
		return err
	}
	devices = append(devices, device)

	data, err := json.Marshal(devicesDoc{V: devicesDocVersion1, Devices: devices})
	if err != nil {
		return err
	}
	return r.set(ctx, device.PrincipalID, store.KindTrustedDevices, data)
}
