package otel

import (
	"context"
	"errors"
	"fmt"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("otel: nil meter")
	ErrNilSource = errors.New("otel: nil metrics source")
)

// Source is read on every collection. *goMFA.Engine implements it.
type Source interface {
	MetricsSnapshot() goMFA.MetricsSnapshot
	AuditDropped() uint64
}

type counterSeries struct {
	id goMFA.MetricID
	// byMethod counters are observed once per method with a method attribute.
	byMethod bool
	inst     metric.Int64ObservableCounter
}

type latencySeries struct {
	id      goMFA.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableCounter
	sum     metric.Float64ObservableCounter
}

// Exporter publishes engine snapshots through observable instruments.
type Exporter struct {
	source       Source
	counters     []counterSeries
	latency      []latencySeries
	auditDropped metric.Int64ObservableCounter
	registration metric.Registration
}

type methodOption struct {
	method goMFA.Method
	opt    metric.ObserveOption
}

var (
	methodOptions = func() []methodOption {
		out := make([]methodOption, len(goMFA.Methods))
		for i, m := range goMFA.Methods {
			out[i] = methodOption{method: m, opt: attributeOption(internaldefs.MethodLabel, string(m))}
		}
		return out
	}()
	boundOptions = func() []metric.ObserveOption {
		out := make([]metric.ObserveOption, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			out[i] = attributeOption(internaldefs.BoundLabel, le)
		}
		return out
	}()
)

func attributeOption(key, value string) metric.ObserveOption {
	return metric.WithAttributeSet(attribute.NewSet(attribute.String(key, value)))
}

// New registers instruments on meter that read from engine.
func New(meter metric.Meter, engine *goMFA.Engine) (*Exporter, error) {
	return NewFromSource(meter, engine)
}

// NewFromSource registers one observable counter per engine counter and, per
// histogram, a bucket gauge keyed by an le attribute plus _count and _sum
// counters. Method-scoped verification counters report one data point per
// method.
func NewFromSource(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	x := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		inst, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("otel: counter %s: %w", def.Name, err)
		}
		x.counters = append(x.counters, counterSeries{id: def.ID, byMethod: def.ID.ByMethod(), inst: inst})
		observables = append(observables, inst)
	}

	for _, def := range internaldefs.HistogramDefs {
		s := latencySeries{id: def.ID}
		var err error
		if s.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound.")); err != nil {
			return nil, fmt.Errorf("otel: histogram %s buckets: %w", def.Name, err)
		}
		if s.count, err = meter.Int64ObservableCounter(def.Name+"_count",
			metric.WithDescription(def.Help+" Observation count.")); err != nil {
			return nil, fmt.Errorf("otel: histogram %s count: %w", def.Name, err)
		}
		if s.sum, err = meter.Float64ObservableCounter(def.Name+"_sum",
			metric.WithDescription(def.Help+" Total observed time."), metric.WithUnit("s")); err != nil {
			return nil, fmt.Errorf("otel: histogram %s sum: %w", def.Name, err)
		}
		x.latency = append(x.latency, s)
		observables = append(observables, s.buckets, s.count, s.sum)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("otel: counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	x.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(x.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}
	x.registration = reg
	return x, nil
}

func (x *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := x.source.MetricsSnapshot()

	for _, c := range x.counters {
		if !c.byMethod {
			o.ObserveInt64(c.inst, int64(snap.Counters[c.id]))
			continue
		}
		series := snap.ByMethod[c.id]
		for _, mo := range methodOptions {
			o.ObserveInt64(c.inst, int64(series[mo.method]), mo.opt)
		}
	}

	for _, s := range x.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[s.id]))
		for i, n := range cumulative {
			o.ObserveInt64(s.buckets, int64(n), boundOptions[i])
		}
		o.ObserveInt64(s.count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(s.sum, snap.HistogramSums[s.id].Seconds())
	}

	o.ObserveInt64(x.auditDropped, int64(x.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. The instruments stay with the Meter.
func (x *Exporter) Close() error {
	if x == nil || x.registration == nil {
		return nil
	}
	return x.registration.Unregister()
}
