package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no Anthropic API key can be resolved.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// apiKeyEnvVars lists the environment variables consulted for the API
// key, highest precedence first. FOREMAN_API_KEY lets a host scope a
// key to foreman without touching the account-wide ANTHROPIC_API_KEY.
var apiKeyEnvVars = []string{"FOREMAN_API_KEY", "ANTHROPIC_API_KEY"}

// KeySource names where the resolved API key came from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config file"
	KeySourceNone   KeySource = "not set"
)

// GetAPIKey resolves the Anthropic API key, checking FOREMAN_API_KEY,
// then ANTHROPIC_API_KEY, then the config file with any ${VAR}
// references expanded.
func GetAPIKey(cfg *Config) (string, error) {
	key, _ := resolveAPIKey(cfg)
	if key == "" {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// APIKeySource reports where GetAPIKey would resolve the key from.
func APIKeySource(cfg *Config) KeySource {
	_, source := resolveAPIKey(cfg)
	return source
}

func resolveAPIKey(cfg *Config) (string, KeySource) {
	for _, name := range apiKeyEnvVars {
		if key := os.Getenv(name); key != "" {
			return key, KeySourceEnv
		}
	}
	if cfg != nil {
		// A reference to an unset variable expands to empty, which is
		// not a usable key.
		if key := os.ExpandEnv(cfg.Anthropic.APIKey); key != "" {
			return key, KeySourceConfig
		}
	}
	return "", KeySourceNone
}

// ValidateAPIKey checks the shape of a key before it is stored. It does
// not verify the key against the API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return fmt.Errorf("API key must start with sk-ant-")
	}
	if len(key) < 20 {
		return fmt.Errorf("API key is too short to be valid")
	}
	return nil
}

// MaskAPIKey renders a key for display, keeping the sk-ant- prefix and
// the last four characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
