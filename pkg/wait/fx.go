package wait

import (
	"context"

	"go.uber.org/fx"

	"agentbus/pkg/bus"
	"agentbus/pkg/logger"
	"agentbus/pkg/store"
)

// Module is the fx module for the wait coordinator.
var Module = fx.Module("wait",
	fx.Provide(Provide),
)

// Provide creates the coordinator and wakes all waiters on shutdown.
func Provide(lc fx.Lifecycle, st *store.Store, eventBus *bus.EventBus, log *logger.Logger) *Coordinator {
	c := New(st, eventBus, log)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			c.Shutdown()
			return nil
		},
	})

	return c
}
