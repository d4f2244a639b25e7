package common

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/proxyops/certsyncd/pkg/common/iface"
	"github.com/urfave/cli/v2"
)

// loggerContextKey is used to store the logger in the context
type loggerContextKey struct{}

// WithShutdown creates a new context that will be cancelled on SIGTERM/SIGINT
func WithShutdown(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		signal.Stop(sigChan)
		cancel()
		_, _ = fmt.Fprintln(os.Stderr, "caught interrupt, shutting down gracefully.")
	}()

	return ctx
}

// WithLogger stores the logger in the context
func WithLogger(ctx context.Context, logger iface.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// LoggerFromContext retrieves the logger from the CLI context.
// If no logger is found, it returns a logger matching the verbose flag.
func LoggerFromContext(cCtx *cli.Context) iface.Logger {
	if logger, ok := cCtx.Context.Value(loggerContextKey{}).(iface.Logger); ok {
		return logger
	}
	return GetLoggerFromCLIContext(cCtx)
}

// LoggerFromStdContext retrieves the logger from a plain context.Context.
// Falls back to a non-verbose structured logger.
func LoggerFromStdContext(ctx context.Context) iface.Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(iface.Logger); ok {
		return logger
	}
	return GetLogger(false)
}
