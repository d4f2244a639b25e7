package common

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/proxyops/certsyncd/pkg/common/iface"
	"github.com/proxyops/certsyncd/pkg/common/logger"
	"github.com/urfave/cli/v2"
)

// GetLoggerFromCLIContext creates a logger based on the CLI context.
// It checks the verbose flag and returns the appropriate logger.
func GetLoggerFromCLIContext(cCtx *cli.Context) iface.Logger {
	return GetLogger(cCtx.Bool("verbose"))
}

// GetLogger returns the logger for the environment we are in: a colorized
// human-oriented logger on a TTY, structured zap output otherwise.
func GetLogger(verbose bool) iface.Logger {
	if isTTY() {
		return logger.NewLogger(verbose)
	}
	return logger.NewZapLogger(verbose)
}

func isTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// PeelBoolFromFlags reports whether any of the given flag spellings appears in
// args. Used to honor a boolean flag regardless of where it sits on the
// command line.
func PeelBoolFromFlags(args []string, names ...string) bool {
	for _, arg := range args {
		for _, name := range names {
			if arg == name {
				return true
			}
		}
	}
	return false
}
