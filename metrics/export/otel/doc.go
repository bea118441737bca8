// Package otel connects goMFA metrics to OpenTelemetry.
//
// [New] registers an Int64ObservableCounter per engine counter (verification
// counters carry a method attribute) and, for the latency histogram, a bucket
// gauge keyed by le plus _count and _sum counters, all fed by one callback
// that reads [goMFA.Engine.MetricsSnapshot]. [NewRecorder] goes the other way: it
// implements metrics.Recorder so tagged samples reach OTel instruments as
// they happen.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
