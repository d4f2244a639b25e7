package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/proxyops/certsyncd/pkg/common/iface"
)

var (
	debugColor = color.New(color.FgHiBlack)
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
)

// PrettyLogger writes colorized, human-oriented output. Used when stdout is a
// terminal, e.g. running `certsyncd server` by hand during debugging.
type PrettyLogger struct {
	verbose bool
}

// NewLogger creates a pretty logger. Verbose enables debug output.
func NewLogger(verbose bool) iface.Logger {
	return &PrettyLogger{verbose: verbose}
}

func (l *PrettyLogger) print(c *color.Color, level, format string, args ...any) {
	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(os.Stderr, "%s %s %s\n", ts, c.Sprint(level), fmt.Sprintf(format, args...))
}

func (l *PrettyLogger) Debug(format string, args ...any) {
	if !l.verbose {
		return
	}
	l.print(debugColor, "DEBUG", format, args...)
}

func (l *PrettyLogger) Info(format string, args ...any) {
	l.print(infoColor, "INFO ", format, args...)
}

func (l *PrettyLogger) Warn(format string, args ...any) {
	l.print(warnColor, "WARN ", format, args...)
}

func (l *PrettyLogger) Error(format string, args ...any) {
	l.print(errorColor, "ERROR", format, args...)
}
