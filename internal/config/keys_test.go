package config

import (
	"errors"
	"testing"
)

func TestGetAPIKeyForemanVarWinsOverAnthropic(t *testing.T) {
	t.Setenv("FOREMAN_API_KEY", "sk-ant-foreman")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-shared")
	cfg := &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config"}}

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "sk-ant-foreman" {
		t.Errorf("key = %q, want the foreman-scoped value", key)
	}
	if APIKeySource(cfg) != KeySourceEnv {
		t.Errorf("source = %q, want environment", APIKeySource(cfg))
	}
}

func TestGetAPIKeyPrefersEnvironment(t *testing.T) {
	t.Setenv("FOREMAN_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	cfg := &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config"}}

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "sk-ant-env" {
		t.Errorf("key = %q, want the environment value", key)
	}
	if APIKeySource(cfg) != KeySourceEnv {
		t.Errorf("source = %q, want environment", APIKeySource(cfg))
	}
}

func TestGetAPIKeyFallsBackToConfig(t *testing.T) {
	t.Setenv("FOREMAN_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config"}}

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "sk-ant-config" {
		t.Errorf("key = %q, want the config value", key)
	}
	if APIKeySource(cfg) != KeySourceConfig {
		t.Errorf("source = %q, want config file", APIKeySource(cfg))
	}
}

func TestGetAPIKeyMissing(t *testing.T) {
	t.Setenv("FOREMAN_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := GetAPIKey(&Config{}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
	if _, err := GetAPIKey(nil); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("nil config err = %v, want ErrNoAPIKey", err)
	}
	if APIKeySource(&Config{}) != KeySourceNone {
		t.Error("source should be none without a key")
	}
}

func TestGetAPIKeyUnexpandedReference(t *testing.T) {
	t.Setenv("FOREMAN_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	// A reference to an unset variable must not be treated as a key.
	cfg := &Config{Anthropic: AnthropicConfig{APIKey: "${FOREMAN_UNSET_KEY_VAR}"}}

	if _, err := GetAPIKey(cfg); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
	if APIKeySource(cfg) != KeySourceNone {
		t.Error("unexpanded reference should not count as a config key")
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		ok   bool
	}{
		{"valid", "sk-ant-REDACTED", true},
		{"empty", "", false},
		{"wrong prefix", "sk-openai-abcdefghijklmnop", false},
		{"too short", "sk-ant-x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.key)
			if tt.ok && err != nil {
				t.Errorf("ValidateAPIKey(%q) = %v, want nil", tt.key, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("ValidateAPIKey(%q) = nil, want error", tt.key)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey(""); got != "(not set)" {
		t.Errorf("empty key masked to %q", got)
	}
	if got := MaskAPIKey("sk-ant-short"); got != "***" {
		t.Errorf("short key masked to %q", got)
	}
	got := MaskAPIKey("sk-ant-REDACTED")
	if got != "sk-ant-...wxyz" {
		t.Errorf("masked = %q", got)
	}
}
