package config

import (
	"go.uber.org/fx"

	"agentbus/pkg/logger"
)

// Path is the config file location passed in from the CLI. Empty means
// default search paths.
type Path string

// Module is the fx module for configuration.
var Module = fx.Module("config",
	fx.Provide(NewLoader),
	fx.Provide(Provide),
	fx.Provide(func(cfg *Config) *logger.Config { return &cfg.Log }),
)

// Provide loads the configuration for fx.
func Provide(loader *Loader, path Path) (*Config, error) {
	return loader.Load(string(path))
}
