package bus

import (
	"context"

	"go.uber.org/fx"

	"agentbus/pkg/config"
	"agentbus/pkg/logger"
)

// Module is the fx module for the event bus.
var Module = fx.Module("bus",
	fx.Provide(Provide),
)

// Provide creates the event bus for fx.
func Provide(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) *EventBus {
	b := New(log, cfg.Bus.BufferSize)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			b.Close()
			return nil
		},
	})

	return b
}
