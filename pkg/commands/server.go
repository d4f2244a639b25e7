package commands

import (
	"fmt"

	"github.com/proxyops/certsyncd/internal/certstore"
	"github.com/proxyops/certsyncd/internal/engine"
	"github.com/proxyops/certsyncd/internal/reload"
	"github.com/proxyops/certsyncd/internal/scheduler"
	"github.com/proxyops/certsyncd/internal/secrets"
	"github.com/proxyops/certsyncd/internal/server"
	"github.com/proxyops/certsyncd/internal/status"
	"github.com/proxyops/certsyncd/pkg/common"
	"github.com/urfave/cli/v2"
)

// ServerCommand defines the "server" command
var ServerCommand = &cli.Command{
	Name:  "server",
	Usage: "Run the certificate sync daemon",
	Flags: append(append([]cli.Flag{}, common.ServerFlags...), common.GlobalFlags...),
	Action: func(cCtx *cli.Context) error {
		return ServerRun(cCtx)
	},
}

// ServerRun wires the sync machinery together and runs the scheduler and the
// HTTP control surface until the process context is cancelled.
func ServerRun(cCtx *cli.Context) error {
	logger := common.LoggerFromContext(cCtx)

	cfg, err := common.LoadConfig(cCtx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cCtx.Context

	source, err := secrets.NewManagerSource(ctx, cfg.AWSRegion, cfg.FetchTimeout, logger)
	if err != nil {
		return err
	}

	store := certstore.New(cfg.CertDir, logger)
	if err := store.Rehydrate(); err != nil {
		return fmt.Errorf("failed to scan certificate directory: %w", err)
	}
	logger.Info("tracking %d certificates in %s", store.Count(), cfg.CertDir)

	dispatcher, err := reload.Select(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("reload strategy: %s", dispatcher.Strategy())

	registry := status.NewRegistry()
	eng := engine.New(source, store, dispatcher, registry, engine.Options{
		Names:    cfg.SecretNamesList(),
		TagKey:   cfg.TagKey,
		TagValue: cfg.TagValue,
	}, logger)

	sched := scheduler.New(ctx, eng, cfg.SyncInterval, logger)
	srv := server.New(cfg, sched, registry, source, logger)

	go sched.Run()

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}
