// Package metrics defines the Recorder boundary through which the Engine
// reports domain metrics such as "mfa.verification.success".
//
// The Engine also keeps lock-free in-process counters (see
// goMFA.Engine.MetricsSnapshot) that the exporters under metrics/export read.
// A Recorder is the push-style complement for callers with their own metrics
// pipeline.
//
// # What this package must NOT do
//
//   - Block the caller. RecordMetric is fire-and-forget.
//   - Import goMFA.
package metrics

//go:generate mockgen -source=recorder.go -destination=../internal/mock/recorder_mock.go -package=mock

import (
	"context"
	"sync"
)

// Sample is one metric observation.
type Sample struct {
	Name  string
	Value float64
	Unit  string
	Tags  map[string]string
}

// Recorder receives samples. Implementations must be safe for concurrent use
// and must not block.
type Recorder interface {
	RecordMetric(ctx context.Context, sample Sample)
}

// Nop discards samples.
type Nop struct{}

func (Nop) RecordMetric(context.Context, Sample) {}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, sample Sample)

func (f RecorderFunc) RecordMetric(ctx context.Context, sample Sample) {
	f(ctx, sample)
}

// Memory keeps every sample. It is meant for tests.
type Memory struct {
	mu      sync.Mutex
	samples []Sample
}

func (m *Memory) RecordMetric(_ context.Context, sample Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, sample)
}

// Samples returns a copy of the recorded samples.
func (m *Memory) Samples() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

// Count returns how many samples named name were recorded.
func (m *Memory) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.samples {
		if s.Name == name {
			n++
		}
	}
	return n
}
