package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigPathEnv overrides the config file location.
const ConfigPathEnv = "AGENTBUS_CONFIG_FILE"

// Loader handles configuration loading with Viper.
type Loader struct {
	viper *viper.Viper
	path  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("json")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".agentbus"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("AGENTBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{viper: v}
}

// Load reads configuration from file and environment. An empty
// configPath falls back to AGENTBUS_CONFIG_FILE, then the default
// search paths. A missing file is auto-created with defaults.
func (l *Loader) Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if strings.TrimSpace(configPath) == "" {
		configPath = strings.TrimSpace(os.Getenv(ConfigPathEnv))
	}
	resolvedPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(configPath) != "" {
		l.viper.SetConfigFile(resolvedPath)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			if err := l.Save(resolvedPath, cfg); err != nil {
				return nil, fmt.Errorf("creating config file: %w", err)
			}
			l.path = resolvedPath
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if used := strings.TrimSpace(l.viper.ConfigFileUsed()); used != "" {
		l.path = used
	} else {
		l.path = resolvedPath
	}
	return cfg, nil
}

// Save writes the configuration to a file through a fresh viper
// instance so env overrides do not leak into the file.
func (l *Loader) Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.Set("server", cfg.Server)
	v.Set("database", cfg.Database)
	v.Set("bus", cfg.Bus)
	v.Set("presence", cfg.Presence)
	v.Set("wait", cfg.Wait)
	v.Set("invite", cfg.Invite)
	v.Set("upload", cfg.Upload)
	v.Set("log", cfg.Log)
	v.Set("language", cfg.Language)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveCurrent persists cfg to the path it was loaded from.
func (l *Loader) SaveCurrent(cfg *Config) error {
	if l.path == "" {
		resolved, err := resolveConfigPath("")
		if err != nil {
			return err
		}
		l.path = resolved
	}
	return l.Save(l.path, cfg)
}

// ConfigPath returns the path of the loaded config file.
func (l *Loader) ConfigPath() string { return l.path }

func resolveConfigPath(configPath string) (string, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".agentbus", "config.json")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return abs, nil
}
