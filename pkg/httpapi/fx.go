package httpapi

import (
	"context"

	"go.uber.org/fx"

	"agentbus/pkg/config"
	"agentbus/pkg/core"
	"agentbus/pkg/logger"
	"agentbus/pkg/mcp"
)

// Module is the fx module for the REST/SSE server.
var Module = fx.Module("httpapi",
	fx.Provide(Provide),
)

// Provide creates the server and binds it to the fx lifecycle.
func Provide(lc fx.Lifecycle, api *core.API, mcpServer *mcp.Server, cfg *config.Config, loader *config.Loader, log *logger.Logger) *Server {
	s := NewServer(api, mcpServer, cfg, loader, log)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})

	return s
}
