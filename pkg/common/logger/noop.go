package logger

import (
	"fmt"
	"sync"
)

// NoopLogger discards nothing but prints nothing; it records every message so
// tests can assert on logging behavior.
type NoopLogger struct {
	mu       sync.Mutex
	messages []string
}

func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(format string, args ...any) { l.record("DEBUG", format, args...) }
func (l *NoopLogger) Info(format string, args ...any)  { l.record("INFO", format, args...) }
func (l *NoopLogger) Warn(format string, args ...any)  { l.record("WARN", format, args...) }
func (l *NoopLogger) Error(format string, args ...any) { l.record("ERROR", format, args...) }

func (l *NoopLogger) record(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, level+": "+fmt.Sprintf(format, args...))
}

// Messages returns a copy of everything logged so far.
func (l *NoopLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}
