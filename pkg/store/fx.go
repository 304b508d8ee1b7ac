package store

import (
	"context"

	"go.uber.org/fx"

	"agentbus/pkg/config"
	"agentbus/pkg/logger"
)

// Module is the fx module for the store.
var Module = fx.Module("store",
	fx.Provide(Provide),
)

// Provide opens the database for fx and closes it on shutdown.
func Provide(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) (*Store, error) {
	s, err := OpenAt(context.Background(), cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return s.Close()
		},
	})

	return s, nil
}
