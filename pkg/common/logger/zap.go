package logger

import (
	"github.com/proxyops/certsyncd/pkg/common/iface"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is the structured logger used when the daemon runs non-interactively
// (under systemd, in a container, in CI).
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger creates a production zap logger. Verbose enables debug level.
func NewZapLogger(verbose bool) iface.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a no-op core rather than failing startup over logging.
		z = zap.NewNop()
	}

	return &ZapLogger{sugar: z.Sugar()}
}

func (l *ZapLogger) Debug(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Info(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Warn(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Error(format string, args ...any) { l.sugar.Errorf(format, args...) }
