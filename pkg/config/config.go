// Package config provides configuration loading for the bus.
// Configuration comes from a JSON file plus AGENTBUS_* environment
// overrides, loaded through Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"agentbus/pkg/logger"
)

// ServerConfig configures the HTTP listener shared by the REST and MCP
// surfaces.
type ServerConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

// BaseURL returns the externally visible address of the bus.
func (s ServerConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the embedded database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// BusConfig configures the in-memory event fan-out.
type BusConfig struct {
	// BufferSize is the per-subscriber queue capacity.
	BufferSize int `mapstructure:"buffer_size" json:"buffer_size"`
}

// PresenceConfig configures heartbeat liveness.
type PresenceConfig struct {
	HeartbeatTimeoutSeconds int `mapstructure:"heartbeat_timeout_seconds" json:"heartbeat_timeout_seconds"`
	SweepIntervalSeconds    int `mapstructure:"sweep_interval_seconds" json:"sweep_interval_seconds"`
}

// HeartbeatTimeout returns the timeout as a duration.
func (p PresenceConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(p.HeartbeatTimeoutSeconds) * time.Second
}

// SweepInterval returns the sweeper tick as a duration.
func (p PresenceConfig) SweepInterval() time.Duration {
	return time.Duration(p.SweepIntervalSeconds) * time.Second
}

// WaitConfig configures the long-poll wait primitive.
type WaitConfig struct {
	DefaultTimeoutSeconds int `mapstructure:"default_timeout_seconds" json:"default_timeout_seconds"`
	MaxTimeoutSeconds     int `mapstructure:"max_timeout_seconds" json:"max_timeout_seconds"`
}

// DefaultTimeout returns the default wait timeout as a duration.
func (w WaitConfig) DefaultTimeout() time.Duration {
	return time.Duration(w.DefaultTimeoutSeconds) * time.Second
}

// MaxTimeout returns the wait timeout cap as a duration.
func (w WaitConfig) MaxTimeout() time.Duration {
	return time.Duration(w.MaxTimeoutSeconds) * time.Second
}

// InviteConfig configures the catalog-driven invitation executor.
type InviteConfig struct {
	// CatalogPath points at the available-agents JSON file.
	CatalogPath string `mapstructure:"catalog_path" json:"catalog_path"`
	// LogDir receives one output log per invocation.
	LogDir string `mapstructure:"log_dir" json:"log_dir"`
	// WatchCatalog reloads the catalog when the file changes.
	WatchCatalog bool `mapstructure:"watch_catalog" json:"watch_catalog"`
}

// UploadConfig configures image upload storage.
type UploadConfig struct {
	Dir      string `mapstructure:"dir" json:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes" json:"max_bytes"`
	// RetentionDays of 0 keeps uploads forever.
	RetentionDays int `mapstructure:"retention_days" json:"retention_days"`
}

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" json:"server"`
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Bus      BusConfig      `mapstructure:"bus" json:"bus"`
	Presence PresenceConfig `mapstructure:"presence" json:"presence"`
	Wait     WaitConfig     `mapstructure:"wait" json:"wait"`
	Invite   InviteConfig   `mapstructure:"invite" json:"invite"`
	Upload   UploadConfig   `mapstructure:"upload" json:"upload"`
	Log      logger.Config  `mapstructure:"log" json:"log"`
	// Language hints agents which language to converse in.
	Language string `mapstructure:"language" json:"language"`

	mu sync.RWMutex
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".agentbus")

	return &Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 39765},
		Database: DatabaseConfig{Path: filepath.Join(base, "agentbus.db")},
		Bus:      BusConfig{BufferSize: 256},
		Presence: PresenceConfig{HeartbeatTimeoutSeconds: 30, SweepIntervalSeconds: 1},
		Wait:     WaitConfig{DefaultTimeoutSeconds: 60, MaxTimeoutSeconds: 300},
		Invite: InviteConfig{
			CatalogPath:  filepath.Join(base, "available_agents.json"),
			LogDir:       filepath.Join(base, "invocations"),
			WatchCatalog: true,
		},
		Upload:   UploadConfig{Dir: filepath.Join(base, "uploads"), MaxBytes: 10 << 20},
		Log:      *logger.DefaultConfig(),
		Language: "English",
	}
}

// SetLanguage updates the language hint. Used by the settings endpoint.
func (c *Config) SetLanguage(lang string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Language = lang
}

// GetLanguage reads the language hint.
func (c *Config) GetLanguage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Language
}

// SetWaitDefaultTimeout updates the default wait timeout in seconds.
func (c *Config) SetWaitDefaultTimeout(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Wait.DefaultTimeoutSeconds = seconds
}
