// Package config handles configuration loading and management for foreman.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for foreman.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	State     StateConfig     `mapstructure:"state"`
	Workers   []WorkerConfig  `mapstructure:"workers"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// DefaultsConfig holds default values for foreman runs.
type DefaultsConfig struct {
	Strategy   string `mapstructure:"strategy"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// MonitorConfig holds monitoring loop settings.
type MonitorConfig struct {
	// PollInterval is the pause between progress polls.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// MaxWallClock bounds a whole run; zero means unbounded.
	MaxWallClock time.Duration `mapstructure:"max_wall_clock"`
}

// StateConfig holds run persistence settings.
type StateConfig struct {
	// DB is the SQLite database path. Empty selects the project-local
	// database under .foreman/.
	DB string `mapstructure:"db"`
}

// WorkerConfig declares one worker to register for runs.
type WorkerConfig struct {
	// ID is the worker's unique identifier.
	ID string `mapstructure:"id"`
	// Capabilities are the capability tags the worker offers.
	Capabilities []string `mapstructure:"capabilities"`
	// Prompt is an optional system prompt framing the worker's calls.
	Prompt string `mapstructure:"prompt"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (FOREMAN_API_KEY, then ANTHROPIC_API_KEY)
// 2. Project config (.foreman.yaml in current directory or parent)
// 3. User config (~/.config/foreman/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("")
	v.BindEnv(append([]string{"anthropic.api_key"}, apiKeyEnvVars...)...)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("defaults.strategy", cfg.Defaults.Strategy)
	v.Set("defaults.max_retries", cfg.Defaults.MaxRetries)
	v.Set("monitor.poll_interval", cfg.Monitor.PollInterval.String())
	v.Set("monitor.max_wall_clock", cfg.Monitor.MaxWallClock.String())
	v.Set("state.db", cfg.State.DB)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")

	v.SetDefault("defaults.strategy", "parallel")
	v.SetDefault("defaults.max_retries", 3)

	v.SetDefault("monitor.poll_interval", "200ms")
	v.SetDefault("monitor.max_wall_clock", "30m")

	v.SetDefault("state.db", "")
}

// getUserConfigDir returns the XDG config directory for foreman.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "foreman")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "foreman")
	}
	return filepath.Join(home, ".config", "foreman")
}

// findProjectConfig searches for .foreman.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".foreman.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			APIKey: "",
			Model:  "",
		},
		Defaults: DefaultsConfig{
			Strategy:   "parallel",
			MaxRetries: 3,
		},
		Monitor: MonitorConfig{
			PollInterval: 200 * time.Millisecond,
			MaxWallClock: 30 * time.Minute,
		},
		State: StateConfig{
			DB: "",
		},
	}
}
