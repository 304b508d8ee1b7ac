package presence

import (
	"context"

	"go.uber.org/fx"

	"agentbus/pkg/bus"
	"agentbus/pkg/config"
	"agentbus/pkg/logger"
	"agentbus/pkg/store"
)

// Module is the fx module for presence tracking.
var Module = fx.Module("presence",
	fx.Provide(Provide),
)

// Provide wires the manager into the fx lifecycle.
func Provide(lc fx.Lifecycle, st *store.Store, eventBus *bus.EventBus, log *logger.Logger, cfg *config.Config) *Manager {
	m := New(st, eventBus, log, cfg.Presence.HeartbeatTimeout(), cfg.Presence.SweepInterval())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return m.Start()
		},
		OnStop: func(ctx context.Context) error {
			return m.Stop()
		},
	})

	return m
}
