// Package logging provides a tiny abstraction over slog so the engine can
// depend on a minimal interface while callers plug in any structured logger.
package logging

import (
	"log/slog"
	"time"
)

// Logger is the minimal structured logging interface used across the engine.
// Arguments are slog-style alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// WithSession returns a Logger with session correlation attributes attached
// to every entry.
func WithSession(l Logger, sessionID string) Logger {
	if sa, ok := l.(*SlogAdapter); ok {
		return &SlogAdapter{Logger: sa.Logger.With("session_id", sessionID)}
	}
	return l
}

// LogCapabilityCall records latency and outcome for one external capability
// call using the provided logger.
func LogCapabilityCall(l Logger, name string, callID string, dur time.Duration, err error) {
	if err != nil {
		l.Error("capability call failed", "capability", name, "call_id", callID, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}
	l.Info("capability call completed", "capability", name, "call_id", callID, "duration_ms", dur.Milliseconds())
}

// NoOpLogger discards all log messages. Useful for testing or when logging
// is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
