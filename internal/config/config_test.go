package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zhouzirui/characterai-go/pkg/cai"
)

var envKeys = []string{
	"CAI_CONFIG", "CAI_TOKEN", "CAI_PLUS", "CAI_BASE_URL", "CAI_NEO_URL", "CAI_WS_URL",
	"CAI_CREATOR_ID", "CAI_AUTHOR_NAME", "CAI_REQUEST_TIMEOUT", "CAI_TURN_TIMEOUT",
	"CAI_DEBUG", "PORT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cai.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr, got %s", cfg.Server.Addr)
	}
	if cfg.CAI.TurnTimeout != cai.DefaultTurnTimeout || cfg.CAI.RequestTimeout != cai.DefaultRequestTimeout {
		t.Fatalf("unexpected timeouts %+v", cfg.CAI)
	}
	if cfg.CAI.Enabled() {
		t.Fatal("expected client disabled without token")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
port = "9000"
debug = true

[cai]
token = "file-token"
plus = true
creator_id = "111"
turn_timeout = "45s"
request_timeout = 10
`)
	t.Setenv("CAI_CONFIG", path)
	t.Setenv("CAI_TOKEN", "env-token")
	t.Setenv("CAI_TURN_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.CAI.Token != "env-token" {
		t.Fatalf("expected env token, got %s", cfg.CAI.Token)
	}
	if cfg.CAI.CreatorID != "111" || !cfg.CAI.Plus || !cfg.Debug {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("expected file port, got %s", cfg.Server.Addr)
	}
	if cfg.CAI.TurnTimeout != 5*time.Second {
		t.Fatalf("expected env turn timeout, got %s", cfg.CAI.TurnTimeout)
	}
	if cfg.CAI.RequestTimeout != 10*time.Second {
		t.Fatalf("expected file request timeout, got %s", cfg.CAI.RequestTimeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"CAI_PLUS", "maybe"},
		{"CAI_TURN_TIMEOUT", "soon"},
		{"PORT", "80 80"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAI_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestClientConfig(t *testing.T) {
	c := CAIConfig{Token: "tok", Plus: true, TurnTimeout: time.Second}
	got := c.ClientConfig(nil)
	if got.Token != "tok" || !got.Plus || got.TurnTimeout != time.Second {
		t.Fatalf("unexpected client config %+v", got)
	}
}
