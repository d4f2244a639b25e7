package iface

// Logger is the logging interface used across the daemon. Implementations
// accept printf-style format strings.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}
