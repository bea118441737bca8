package internaldefs

import (
	goMFA "github.com/MrEthical07/goMFA"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   goMFA.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goMFA.MetricID
	Name string
	Help string
}

// MethodLabel is the label carrying the verification method on counters
// whose MetricID.ByMethod is true.
const MethodLabel = "method"

// BoundLabel is the label carrying a histogram bucket's upper bound.
const BoundLabel = "le"

const (
	AuditDroppedName = "gomfa_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goMFA.MetricFactorEnrolled, Name: "gomfa_factor_enrolled_total", Help: "TOTP, SMS and email factors set up."},
	{ID: goMFA.MetricFactorRemoved, Name: "gomfa_factor_removed_total", Help: "Factors removed."},
	{ID: goMFA.MetricChallengeIssued, Name: "gomfa_challenge_issued_total", Help: "SMS and email codes delivered."},
	{ID: goMFA.MetricChallengeDeliveryFailed, Name: "gomfa_challenge_delivery_failed_total", Help: "SMS and email codes the notifier could not deliver."},
	{ID: goMFA.MetricBackupCodesGenerated, Name: "gomfa_backup_codes_generated_total", Help: "Backup code sets generated."},
	{ID: goMFA.MetricBackupCodeUsed, Name: "gomfa_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: goMFA.MetricPolicyViolation, Name: "gomfa_policy_violation_total", Help: "Operations rejected for leaving a principal without a verified factor."},
	{ID: goMFA.MetricVerificationSuccess, Name: "gomfa_verification_success_total", Help: "Successful verifications by method."},
	{ID: goMFA.MetricVerificationFailed, Name: "gomfa_verification_failed_total", Help: "Failed verifications by method."},
	{ID: goMFA.MetricVerificationRateLimited, Name: "gomfa_verification_rate_limited_total", Help: "Verifications refused during a lockout, by method."},
	{ID: goMFA.MetricLockoutTriggered, Name: "gomfa_lockout_triggered_total", Help: "Lockouts started."},
	{ID: goMFA.MetricDeviceTrusted, Name: "gomfa_device_trusted_total", Help: "Trusted device entries recorded."},
}

var HistogramDefs = []HistogramDef{
	{ID: goMFA.MetricVerifyLatency, Name: "gomfa_verify_latency_seconds", Help: "VerifyMFA latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed eight bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to Prometheus-style
// cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
