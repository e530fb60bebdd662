package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, `
anthropic:
  model: claude-sonnet-4-20250514
defaults:
  strategy: prioritized
  max_retries: 5
monitor:
  poll_interval: 1s
  max_wall_clock: 10m
state:
  db: /tmp/foreman-test.db
workers:
  - id: coder
    capabilities: [go, rust]
    prompt: You write code.
  - id: writer
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q", cfg.Anthropic.Model)
	}
	if cfg.Defaults.Strategy != "prioritized" || cfg.Defaults.MaxRetries != 5 {
		t.Errorf("defaults = %+v", cfg.Defaults)
	}
	if cfg.Monitor.PollInterval != time.Second {
		t.Errorf("poll_interval = %v", cfg.Monitor.PollInterval)
	}
	if cfg.Monitor.MaxWallClock != 10*time.Minute {
		t.Errorf("max_wall_clock = %v", cfg.Monitor.MaxWallClock)
	}
	if cfg.State.DB != "/tmp/foreman-test.db" {
		t.Errorf("state.db = %q", cfg.State.DB)
	}

	if len(cfg.Workers) != 2 {
		t.Fatalf("got %d workers, want 2", len(cfg.Workers))
	}
	if cfg.Workers[0].ID != "coder" || len(cfg.Workers[0].Capabilities) != 2 || cfg.Workers[0].Prompt == "" {
		t.Errorf("worker 0 = %+v", cfg.Workers[0])
	}
	if cfg.Workers[1].ID != "writer" || len(cfg.Workers[1].Capabilities) != 0 {
		t.Errorf("worker 1 = %+v", cfg.Workers[1])
	}
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
anthropic:
  model: claude-sonnet-4-20250514
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Defaults.Strategy != "parallel" {
		t.Errorf("strategy = %q, want the parallel default", cfg.Defaults.Strategy)
	}
	if cfg.Defaults.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want 3", cfg.Defaults.MaxRetries)
	}
	if cfg.Monitor.PollInterval != 200*time.Millisecond {
		t.Errorf("poll_interval = %v, want 200ms", cfg.Monitor.PollInterval)
	}
	if cfg.Monitor.MaxWallClock != 30*time.Minute {
		t.Errorf("max_wall_clock = %v, want 30m", cfg.Monitor.MaxWallClock)
	}
}

func TestLoadFromPathExpandsAPIKeyEnv(t *testing.T) {
	t.Setenv("FOREMAN_TEST_KEY", "sk-ant-from-environment")
	path := writeConfig(t, `
anthropic:
  api_key: ${FOREMAN_TEST_KEY}
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-environment" {
		t.Errorf("api_key = %q, want the expanded value", cfg.Anthropic.APIKey)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Defaults.Strategy != "parallel" || cfg.Defaults.MaxRetries != 3 {
		t.Errorf("defaults = %+v", cfg.Defaults)
	}
	if cfg.Monitor.PollInterval != 200*time.Millisecond || cfg.Monitor.MaxWallClock != 30*time.Minute {
		t.Errorf("monitor = %+v", cfg.Monitor)
	}
	if cfg.Anthropic.APIKey != "" || cfg.State.DB != "" {
		t.Errorf("expected empty key and db, got %+v / %+v", cfg.Anthropic, cfg.State)
	}
}
