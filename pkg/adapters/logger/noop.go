package logger

import "github.com/user/vidplay/pkg/ports"

// NoopLogger discards all messages. Tests and embedders that route
// diagnostics elsewhere use it.
type NoopLogger struct{}

// NewNoop creates a new no-op logger.
func NewNoop() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(msg string, args ...interface{}) {}
func (l *NoopLogger) Info(msg string, args ...interface{})  {}
func (l *NoopLogger) Warn(msg string, args ...interface{})  {}
func (l *NoopLogger) Error(msg string, args ...interface{}) {}

// WithComponent returns l.
func (l *NoopLogger) WithComponent(component string) ports.Logger {
	return l
}
