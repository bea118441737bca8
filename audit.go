package goMFA

import (
	"io"

	internalaudit "github.com/MrEthical07/goMFA/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one audit record. It never carries codes, secrets or contacts.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the Engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers audit events on a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink writes audit events as zerolog lines.
type LogSink = internalaudit.LogSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a JSONWriterSink over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLogSink returns a LogSink over l.
func NewLogSink(l zerolog.Logger) *LogSink {
	return internalaudit.NewLogSink(l)
}
