package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/proxyops/certsyncd/pkg/commands"
	"github.com/proxyops/certsyncd/pkg/commands/version"
	"github.com/proxyops/certsyncd/pkg/common"
	"github.com/proxyops/certsyncd/pkg/hooks"
	"github.com/proxyops/certsyncd/pkg/versioncheck"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx := common.WithShutdown(context.Background())

	app := &cli.App{
		Name:  "certsyncd",
		Usage: "Certificate sync daemon for HAProxy",
		Flags: common.GlobalFlags,
		Before: func(cCtx *cli.Context) error {
			err := hooks.LoadEnvFile(cCtx)
			if err != nil {
				return err
			}

			// Parse verbose flags from raw argv to capture from subcommand flags
			verbose := common.PeelBoolFromFlags(os.Args[1:], "--verbose", "-v")
			if verbose {
				err := cCtx.Set("verbose", "true")
				if err != nil {
					return fmt.Errorf("failed to set verbose flag globally: %w", err)
				}
			}

			logger := common.GetLoggerFromCLIContext(cCtx)
			cCtx.Context = common.WithLogger(cCtx.Context, logger)

			// Check for updates asynchronously; never blocks startup
			if cCtx.Command.Name != "version" && cCtx.Command.Name != "help" {
				go func() {
					updateInfo, err := versioncheck.CheckForUpdate(logger)
					if err == nil && updateInfo != nil && updateInfo.Available {
						versioncheck.PrintUpdateNotification(updateInfo)
					}
				}()
			}

			return nil
		},
		Commands: []*cli.Command{
			commands.ServerCommand,
			version.VersionCommand,
		},
		UseShortOptionHandling: true,
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
