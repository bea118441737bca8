// Package logger wraps zerolog with the constructors used across goMFA.
//
// Logger embeds zerolog.Logger, so the full zerolog API is available. Engine
// code logs principal IDs, methods and error values only; codes, secrets and
// contact details never reach a log line.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a thin wrapper around zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// New returns a JSON logger writing to w with a "role" field and timestamps.
// A nil w writes to os.Stderr.
func New(role string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	l := zerolog.New(w).With().
		Str("role", role).
		Timestamp().
		Logger()
	return &Logger{l}
}

// Wrap adopts an existing zerolog.Logger.
func Wrap(l zerolog.Logger) *Logger {
	return &Logger{l}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// Child returns a Logger tagged with component, leaving the receiver untouched.
func (l *Logger) Child(component string) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{l.With().Str("component", component).Logger()}
}

// FromContext returns the logger attached to ctx by zerolog's WithContext,
// falling back to fallback when none is attached.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if ctx != nil {
		if l := log.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
			return &Logger{*l}
		}
	}
	if fallback == nil {
		return Nop()
	}
	return fallback
}
