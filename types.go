package goMFA

import (
	"time"

	"github.com/MrEthical07/goMFA/internal/flows"
)

// Method identifies a second factor.
type Method string

const (
	// MethodTOTP is an authenticator app (RFC 6238).
	MethodTOTP Method = flows.MethodTOTP
	// MethodSMS delivers one-time codes by text message.
	MethodSMS Method = flows.MethodSMS
	// MethodEmail delivers one-time codes by email.
	MethodEmail Method = flows.MethodEmail
	// MethodBackupCodes is the set of single-use recovery codes.
	MethodBackupCodes Method = flows.MethodBackupCodes
)

// Methods lists all methods in reporting order.
var Methods = []Method{MethodTOTP, MethodSMS, MethodEmail, MethodBackupCodes}

// Valid reports whether m is a supported method.
func (m Method) Valid() bool {
	return flows.KnownMethod(string(m))
}

func (m Method) String() string { return string(m) }

// FactorStatus is the lifecycle state of an enrolled factor.
type FactorStatus string

const (
	// FactorPending is set up but not yet confirmed with a code.
	FactorPending FactorStatus = "pending"
	// FactorVerified has been confirmed at least once.
	FactorVerified FactorStatus = "verified"
)

// FactorInfo is the public view of a factor. It never carries secrets;
// Destination is a masked phone number or email address.
type FactorInfo struct {
	Method               Method
	Status               FactorStatus
	Destination          string
	RemainingBackupCodes int
	CreatedAt            time.Time
	LastUsedAt           *time.Time
}

// TOTPSetup is returned once by SetupTOTP. Secret and URI are not stored in
// plaintext and cannot be retrieved again.
type TOTPSetup struct {
	Secret string
	URI    string
	// QRCode is a data:image/png;base64 URL of the provisioning URI.
	QRCode string
}

// DeviceInfo describes a device the principal asked to trust.
type DeviceInfo struct {
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

// TrustedDevice is one entry of a principal's trusted device ledger.
type TrustedDevice struct {
	ID         string
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
}

// LockoutStatus reports whether verification is currently refused.
type LockoutStatus struct {
	Locked     bool
	Until      time.Time
	RetryAfter time.Duration
}
