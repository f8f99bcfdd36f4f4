package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "odin.example.com"
  port: 8888
  api_prefix: "api/0.1"
sync:
  poll_interval: 5
  max_missed_generations: 4
api:
  host: "0.0.0.0"
  port: 9090
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "odin.example.com" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "odin.example.com")
	}
	if cfg.Sync.PollInterval != 5 {
		t.Errorf("Sync.PollInterval = %d, want 5", cfg.Sync.PollInterval)
	}
	if cfg.Sync.MaxMissedGenerations != 4 {
		t.Errorf("Sync.MaxMissedGenerations = %d, want 4", cfg.Sync.MaxMissedGenerations)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  host: \"localhost\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.APIPrefix != "api/0.1" {
		t.Errorf("Server.APIPrefix = %q, want default %q", cfg.Server.APIPrefix, "api/0.1")
	}
	if cfg.Sync.PollInterval != 2 {
		t.Errorf("Sync.PollInterval = %d, want default 2", cfg.Sync.PollInterval)
	}
	if cfg.Sync.MaxMissedGenerations != 3 {
		t.Errorf("Sync.MaxMissedGenerations = %d, want default 3", cfg.Sync.MaxMissedGenerations)
	}
	if !cfg.Adapters.Discover {
		t.Error("Adapters.Discover should default to true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
server:
  host: ""
adapters:
  discover: false
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "server.host is required") {
		t.Errorf("error %q should mention server.host", err)
	}
	if !strings.Contains(err.Error(), "adapters.static is required") {
		t.Errorf("error %q should mention adapters.static", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PARAMBRIDGE_SERVER_HOST", "override.example.com")
	t.Setenv("PARAMBRIDGE_SERVER_PORT", "9999")

	cfg, err := Load(writeConfig(t, "server:\n  host: \"file-value\"\n  port: 8888\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "override.example.com" {
		t.Errorf("Server.Host = %q, want env override", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want env override 9999", cfg.Server.Port)
	}
}

func TestConfig_DurationGetters(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sync:
  poll_interval: 3
  write_timeout: 7
  backoff:
    initial_delay: 2
    max_delay: 30
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.GetPollInterval().Seconds(); got != 3 {
		t.Errorf("GetPollInterval() = %vs, want 3s", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 7 {
		t.Errorf("GetWriteTimeout() = %vs, want 7s", got)
	}
	if got := cfg.GetBackoffInitial().Seconds(); got != 2 {
		t.Errorf("GetBackoffInitial() = %vs, want 2s", got)
	}
	if got := cfg.GetBackoffMax().Seconds(); got != 30 {
		t.Errorf("GetBackoffMax() = %vs, want 30s", got)
	}
}

func TestConfig_ServerBaseURL(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  host: \"10.0.0.5\"\n  port: 8888\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := "http://10.0.0.5:8888"
	if got := cfg.ServerBaseURL(); got != want {
		t.Errorf("ServerBaseURL() = %q, want %q", got, want)
	}
}
