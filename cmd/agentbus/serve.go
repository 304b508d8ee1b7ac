package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"agentbus/pkg/bus"
	"agentbus/pkg/config"
	"agentbus/pkg/core"
	"agentbus/pkg/httpapi"
	"agentbus/pkg/invite"
	"agentbus/pkg/logger"
	"agentbus/pkg/mcp"
	"agentbus/pkg/presence"
	"agentbus/pkg/store"
	"agentbus/pkg/wait"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bus server",
	Long: `Run the agentbus server, exposing the REST, SSE and MCP surfaces
on one listener.

Examples:
  # Run in foreground
  agentbus serve

  # Install as a system service (requires sudo/admin privileges)
  sudo agentbus serve install

  # Control the service
  sudo agentbus serve start
  sudo agentbus serve stop
  sudo agentbus serve restart
  sudo agentbus serve status

  # Uninstall the service
  sudo agentbus serve uninstall`,
	Run: runServeDefault,
}

var serveRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the server in foreground or as a service",
	Long:  `Run the server. When installed as a service, this is called automatically.`,
	Run:   runServeRun,
}

func init() {
	serveCmd.AddCommand(serveRunCmd)
	serveCmd.AddCommand(serveInstallCmd)
	serveCmd.AddCommand(serveUninstallCmd)
	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveRestartCmd)
	serveCmd.AddCommand(serveStatusCmd)
}

// busModules is the full dependency graph of the server: every surface
// shares the single core façade, store and event bus.
func busModules() []fx.Option {
	return []fx.Option{
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
		httpapi.Module,
	}
}

// newServerApp assembles the fx application serving all surfaces.
func newServerApp(quiet bool) *fx.App {
	opts := busModules()
	opts = append(opts,
		fx.Invoke(func(lc fx.Lifecycle, log *logger.Logger, s *httpapi.Server, cfg *config.Config) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.Info("Bus started",
						zap.String("host", cfg.Server.Host),
						zap.Int("port", cfg.Server.Port))
					return nil
				},
				OnStop: func(ctx context.Context) error {
					log.Info("Bus stopped")
					return nil
				},
			})
		}),
	)
	if quiet {
		opts = append(opts, fx.NopLogger)
	}
	return fx.New(opts...)
}

func runServeDefault(cmd *cobra.Command, args []string) {
	fmt.Println("Starting agentbus in foreground mode...")
	fmt.Println("To install as a system service, use: agentbus serve install")
	fmt.Println()

	runServeForeground()
}

func runServeRun(cmd *cobra.Command, args []string) {
	isService := os.Getenv("INVOCATION_ID") != "" || // systemd
		os.Getenv("SERVICE_NAME") != "" // Windows service

	if isService {
		if err := RunService(); err != nil {
			fmt.Fprintf(os.Stderr, "Error running service: %v\n", err)
			os.Exit(1)
		}
	} else {
		runServeForeground()
	}
}

// runServeForeground runs the server until interrupted. fx.App.Run
// handles SIGINT/SIGTERM itself.
func runServeForeground() {
	newServerApp(false).Run()
}
