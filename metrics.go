package goMFA

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goMFA/metrics"
)

// MetricID identifies an in-process counter or histogram.
type MetricID uint16

const (
	// MetricFactorEnrolled counts successful TOTP, SMS and email setups.
	MetricFactorEnrolled MetricID = iota
	// MetricFactorRemoved counts removed factors.
	MetricFactorRemoved
	// MetricChallengeIssued counts delivered SMS and email codes.
	MetricChallengeIssued
	// MetricChallengeDeliveryFailed counts codes the notifier could not deliver.
	MetricChallengeDeliveryFailed
	// MetricBackupCodesGenerated counts backup code set generations.
	MetricBackupCodesGenerated
	// MetricBackupCodeUsed counts consumed backup codes.
	MetricBackupCodeUsed
	// MetricPolicyViolation counts rejected removals and re-setups of the last verified factor.
	MetricPolicyViolation
	// MetricVerificationSuccess counts successful verifications.
	MetricVerificationSuccess
	// MetricVerificationFailed counts failed verifications.
	MetricVerificationFailed
	// MetricVerificationRateLimited counts verifications refused by an active lockout.
	MetricVerificationRateLimited
	// MetricLockoutTriggered counts lockouts created.
	MetricLockoutTriggered
	// MetricDeviceTrusted counts trusted device ledger entries.
	MetricDeviceTrusted
	// MetricVerifyLatency is the VerifyMFA latency histogram.
	MetricVerifyLatency
	metricIDCount
)

// metricNames maps counters to the sample names sent to a metrics.Recorder.
var metricNames = [metricIDCount]string{
	MetricFactorEnrolled:          "mfa.factor.enrolled",
	MetricFactorRemoved:           "mfa.factor.removed",
	MetricChallengeIssued:         "mfa.challenge.issued",
	MetricChallengeDeliveryFailed: "mfa.challenge.delivery_failed",
	MetricBackupCodesGenerated:    "mfa.backup_codes.generated",
	MetricBackupCodeUsed:          "mfa.backup_codes.used",
	MetricPolicyViolation:         "mfa.policy_violation",
	MetricVerificationSuccess:     "mfa.verification.success",
	MetricVerificationFailed:      "mfa.verification.failed",
	MetricVerificationRateLimited: "mfa.verification.rate_limited",
	MetricLockoutTriggered:        "mfa.lockout.triggered",
	MetricDeviceTrusted:           "mfa.device.trusted",
	MetricVerifyLatency:           "mfa.verification.duration",
}

// ByMethod reports whether id is also counted per verification method.
func (id MetricID) ByMethod() bool {
	switch id {
	case MetricVerificationSuccess, MetricVerificationFailed, MetricVerificationRateLimited:
		return true
	}
	return false
}

// Name returns the Recorder sample name of id.
func (id MetricID) Name() string {
	if id >= metricIDCount {
		return ""
	}
	return metricNames[id]
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
	methodCount     = 4
)

var methodOrder = [methodCount]Method{MethodTOTP, MethodSMS, MethodEmail, MethodBackupCodes}

// methodSlot is the index of method in methodOrder, or -1.
func methodSlot(method Method) int {
	for i, m := range methodOrder {
		if m == method {
			return i
		}
	}
	return -1
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds allocation-free counters and one latency histogram.
// Counters for which MetricID.ByMethod is true also keep one series per
// verification method.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	byMethod      [metricIDCount][methodCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
	latencySumUS  uint64
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
// ByMethod holds the per-method series of method-scoped counters;
// HistogramSums the total observed duration of each histogram.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	ByMethod      map[MetricID]map[Method]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments id. It is a no-op when metrics are disabled.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// IncMethod increments id and, when id is method-scoped and method is known,
// the series for method.
func (m *Metrics) IncMethod(id MetricID, method Method) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
	if !id.ByMethod() {
		return
	}
	if slot := methodSlot(method); slot >= 0 {
		atomic.AddUint64(&m.byMethod[id][slot].value, 1)
	}
}

// MethodValue returns the series of id for method.
func (m *Metrics) MethodValue(id MetricID, method Method) uint64 {
	slot := methodSlot(method)
	if m == nil || id >= metricIDCount || slot < 0 {
		return 0
	}
	return atomic.LoadUint64(&m.byMethod[id][slot].value)
}

// Observe records d in the histogram of id. Only MetricVerifyLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
	if us := d.Microseconds(); us > 0 {
		atomic.AddUint64(&m.latencySumUS, uint64(us))
	}
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies the current values. A disabled Metrics yields empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			ByMethod:      map[MetricID]map[Method]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}

	s := MetricsSnapshot{
		Counters:      make(map[MetricID]uint64, int(metricIDCount)),
		ByMethod:      make(map[MetricID]map[Method]uint64, 3),
		Histograms:    make(map[MetricID][]uint64, 1),
		HistogramSums: make(map[MetricID]time.Duration, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricVerifyLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
		if !id.ByMethod() {
			continue
		}
		series := make(map[Method]uint64, methodCount)
		for slot, method := range methodOrder {
			series[method] = atomic.LoadUint64(&m.byMethod[id][slot].value)
		}
		s.ByMethod[id] = series
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
		s.HistogramSums[MetricVerifyLatency] = time.Duration(atomic.LoadUint64(&m.latencySumUS)) * time.Microsecond
	}

	return s
}

// bucketIndex buckets are sized for verification, which may include a
// PBKDF2 derivation.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}

func (e *Engine) metricInc(ctx context.Context, id MetricID, method string) {
	if e == nil {
		return
	}
	e.metrics.IncMethod(id, Method(method))
	if e.recorder == nil {
		return
	}
	var tags map[string]string
	if method != "" {
		tags = map[string]string{"method": method}
	}
	e.recorder.RecordMetric(ctx, metrics.Sample{Name: id.Name(), Value: 1, Unit: "count", Tags: tags})
}

func (e *Engine) observeLatency(ctx context.Context, method string, started time.Time) {
	if e == nil {
		return
	}
	d := e.now().Sub(started)
	e.metrics.Observe(MetricVerifyLatency, d)
	if e.recorder != nil {
		e.recorder.RecordMetric(ctx, metrics.Sample{
			Name:  MetricVerifyLatency.Name(),
			Value: float64(d.Microseconds()) / 1000,
			Unit:  "ms",
			Tags:  map[string]string{"method": method},
		})
	}
}
