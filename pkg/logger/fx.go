package logger

import (
	"context"

	"go.uber.org/fx"
)

// Module is the fx module for the logger. It expects a *Config in the
// graph; the config module supplies one from the log section.
var Module = fx.Module("logger",
	fx.Provide(Provide),
)

// Provide creates the logger for fx and flushes it on shutdown.
func Provide(lc fx.Lifecycle, cfg *Config) (*Logger, error) {
	log, err := New(cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = log.Sync()
			return nil
		},
	})

	return log, nil
}
