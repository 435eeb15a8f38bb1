package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
server:
  address: 127.0.0.1
  port: 9090
channel:
  url: wss://example.test/ws
  reconnect_base_delay: 500
  reconnect_max_delay: 30s
typing:
  ttl: 6s
retention:
  enabled: true
  cron: "0 3 * * *"
  period: 168h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if got := cfg.Channel.ReconnectBaseDelay.Duration(); got != 500*time.Millisecond {
		t.Fatalf("bare int not treated as ms: %v", got)
	}
	if got := cfg.Channel.ReconnectMaxDelay.Duration(); got != 30*time.Second {
		t.Fatalf("duration string wrong: %v", got)
	}
	if got := cfg.Retention.Period.Duration(); got != 168*time.Hour {
		t.Fatalf("period wrong: %v", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHATSYNC_ADDR", "10.0.0.1:7070")
	t.Setenv("CHATSYNC_CHANNEL_URL", "wss://env.test/ws")
	t.Setenv("CHATSYNC_USERNAME", "ana")
	t.Setenv("CHATSYNC_RETENTION_ENABLED", "true")

	cfg := &Config{}
	if !ApplyEnvOverrides(cfg) {
		t.Fatalf("env not detected")
	}
	if cfg.Server.Address != "10.0.0.1" || cfg.Server.Port != 7070 {
		t.Fatalf("addr not split: %+v", cfg.Server)
	}
	if cfg.Channel.URL != "wss://env.test/ws" || cfg.Identity.Username != "ana" {
		t.Fatalf("overrides missing: %+v", cfg)
	}
	if !cfg.Retention.Enabled {
		t.Fatalf("bool override missing")
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("CHATSYNC_CONFIG", "/etc/chatsync.yaml")
	if got := ResolveConfigPath("./config.yaml", false); got != "/etc/chatsync.yaml" {
		t.Fatalf("env path ignored: %q", got)
	}
	if got := ResolveConfigPath("./explicit.yaml", true); got != "./explicit.yaml" {
		t.Fatalf("explicit flag lost: %q", got)
	}
}
