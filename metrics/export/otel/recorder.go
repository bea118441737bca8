package otel

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/MrEthical07/goMFA/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder implements metrics.Recorder on top of an OTel Meter. Samples with
// unit "ms" feed a Float64Histogram, everything else a Float64Counter.
// Instruments are created on first use of a sample name.
type Recorder struct {
	meter metric.Meter

	mu         sync.RWMutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
}

var _ metrics.Recorder = (*Recorder)(nil)

func NewRecorder(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	return &Recorder{
		meter:      meter,
		counters:   make(map[string]metric.Float64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}, nil
}

// RecordMetric never fails; samples whose instrument cannot be created are
// dropped.
func (r *Recorder) RecordMetric(ctx context.Context, sample metrics.Sample) {
	if r == nil || sample.Name == "" {
		return
	}
	attrs := metric.WithAttributes(tagAttributes(sample.Tags)...)

	if sample.Unit == "ms" {
		h, ok := r.histogram(sample.Name)
		if ok {
			h.Record(ctx, sample.Value, attrs)
		}
		return
	}
	c, ok := r.counter(sample.Name, sample.Unit)
	if ok {
		c.Add(ctx, sample.Value, attrs)
	}
}

func (r *Recorder) counter(name, unit string) (metric.Float64Counter, bool) {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c, true
	}
	opts := []metric.Float64CounterOption{}
	if unit != "" && unit != "count" {
		opts = append(opts, metric.WithUnit(unit))
	}
	c, err := r.meter.Float64Counter(instrumentName(name), opts...)
	if err != nil {
		return nil, false
	}
	r.counters[name] = c
	return c, true
}

func (r *Recorder) histogram(name string) (metric.Float64Histogram, bool) {
	r.mu.RLock()
	h, ok := r.histograms[name]
	r.mu.RUnlock()
	if ok {
		return h, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h, true
	}
	h, err := r.meter.Float64Histogram(instrumentName(name), metric.WithUnit("ms"))
	if err != nil {
		return nil, false
	}
	r.histograms[name] = h
	return h, true
}

// instrumentName maps "mfa.verification.success" to
// "gomfa_verification_success".
func instrumentName(name string) string {
	name = strings.TrimPrefix(name, "mfa.")
	return "gomfa_" + strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

func tagAttributes(tags map[string]string) []attribute.KeyValue {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, attribute.String(k, tags[k]))
	}
	return out
}
