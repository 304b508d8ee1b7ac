package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"agentbus/pkg/bus"
	"agentbus/pkg/config"
	"agentbus/pkg/core"
	"agentbus/pkg/invite"
	"agentbus/pkg/logger"
	"agentbus/pkg/mcp"
	"agentbus/pkg/presence"
	"agentbus/pkg/store"
	"agentbus/pkg/wait"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP over stdio",
	Long: `Serve the MCP surface over stdin/stdout for clients that spawn the
bus as a subprocess. This transport opens the same database as the
HTTP server, so stdio clients see the same threads and agents, but it
runs its own in-process event bus: events and wait wake-ups from
another process do not reach it.`,
	Run: runStdio,
}

func runStdio(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := fx.New(
		fx.Supply(config.Path(configPath)),
		config.Module,
		logger.Module,
		store.Module,
		bus.Module,
		wait.Module,
		presence.Module,
		invite.Module,
		core.Module,
		mcp.Module,

		fx.Invoke(func(lc fx.Lifecycle, log *logger.Logger, s *mcp.Server, shutdowner fx.Shutdowner) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer cancel()
						if err := s.ServeStdio(ctx); err != nil && ctx.Err() == nil {
							log.Error("Stdio transport failed", zap.Error(err))
						}
						_ = shutdowner.Shutdown()
					}()
					return nil
				},
			})
		}),

		// Keep stdout clean for the protocol.
		fx.NopLogger,
	)

	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting stdio server: %v\n", err)
		os.Exit(1)
	}

	<-app.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping stdio server: %v\n", err)
	}
}
