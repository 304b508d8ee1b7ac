package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 39765 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.BaseURL() != "http://127.0.0.1:39765" {
		t.Errorf("base url = %s", cfg.Server.BaseURL())
	}
	if cfg.Presence.HeartbeatTimeout() != 30*time.Second {
		t.Errorf("heartbeat timeout = %v", cfg.Presence.HeartbeatTimeout())
	}
	if cfg.Wait.DefaultTimeout() != 60*time.Second || cfg.Wait.MaxTimeout() != 5*time.Minute {
		t.Errorf("wait = %+v", cfg.Wait)
	}
	if cfg.Language != "English" {
		t.Errorf("language = %q", cfg.Language)
	}
	if cfg.Bus.BufferSize <= 0 {
		t.Error("bus buffer size must be positive")
	}
}

func TestLoadCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	l := NewLoader()
	cfg, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 39765 {
		t.Errorf("defaults not applied: %+v", cfg.Server)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not auto-created: %v", err)
	}
	if l.ConfigPath() != path {
		t.Errorf("ConfigPath = %q, want %q", l.ConfigPath(), path)
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"server": {"host": "0.0.0.0", "port": 4000},
		"wait": {"default_timeout_seconds": 15, "max_timeout_seconds": 90},
		"language": "French"
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 4000 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Wait.DefaultTimeoutSeconds != 15 || cfg.Wait.MaxTimeoutSeconds != 90 {
		t.Errorf("wait = %+v", cfg.Wait)
	}
	if cfg.Language != "French" {
		t.Errorf("language = %q", cfg.Language)
	}
	// Sections the file omits keep their defaults.
	if cfg.Presence.HeartbeatTimeoutSeconds != 30 {
		t.Errorf("presence = %+v", cfg.Presence)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server": {"host": "127.0.0.1", "port": 4000}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AGENTBUS_SERVER_PORT", "5050")

	cfg, err := NewLoader().Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 5050 {
		t.Errorf("env override ignored, port = %d", cfg.Server.Port)
	}
}

func TestLoadPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "from-env.json")
	t.Setenv(ConfigPathEnv, path)

	l := NewLoader()
	if _, err := l.Load(""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.ConfigPath() != path {
		t.Errorf("ConfigPath = %q, want %q", l.ConfigPath(), path)
	}
}

func TestSaveCurrentRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	l := NewLoader()
	cfg, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg.SetLanguage("Spanish")
	cfg.SetWaitDefaultTimeout(42)
	if err := l.SaveCurrent(cfg); err != nil {
		t.Fatalf("SaveCurrent: %v", err)
	}

	reloaded, err := NewLoader().Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.GetLanguage() != "Spanish" {
		t.Errorf("language = %q", reloaded.GetLanguage())
	}
	if reloaded.Wait.DefaultTimeoutSeconds != 42 {
		t.Errorf("wait timeout = %d", reloaded.Wait.DefaultTimeoutSeconds)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{broken"), 0o644)

	if _, err := NewLoader().Load(path); err == nil {
		t.Error("malformed config must error")
	}
}
