package invite

import (
	"context"

	"go.uber.org/fx"

	"agentbus/pkg/config"
	"agentbus/pkg/logger"
)

// Module is the fx module for the invitation executor.
var Module = fx.Module("invite",
	fx.Provide(ProvideCatalog, ProvideExecutor),
)

// ProvideCatalog loads the catalog at startup and hot-reloads it when
// enabled.
func ProvideCatalog(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) (*Catalog, error) {
	catalog := NewCatalog(cfg.Invite.CatalogPath, log)

	var watcher *Watcher
	watchCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := catalog.Load(); err != nil {
				return err
			}
			if !cfg.Invite.WatchCatalog {
				return nil
			}
			w, err := NewWatcher(log, catalog)
			if err != nil {
				return err
			}
			watcher = w
			return watcher.Start(watchCtx)
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			if watcher != nil {
				return watcher.Stop()
			}
			return nil
		},
	})

	return catalog, nil
}

// ProvideExecutor creates the executor bound to the server address.
func ProvideExecutor(catalog *Catalog, log *logger.Logger, cfg *config.Config) *Executor {
	return NewExecutor(catalog, log, cfg.Invite.LogDir, cfg.Server.BaseURL())
}
