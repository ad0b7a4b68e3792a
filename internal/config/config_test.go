package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Memory.SessionTTL() != 24*time.Hour {
		t.Fatalf("unexpected session ttl: %v", cfg.Memory.SessionTTL())
	}
	if got := cfg.Memory.Namespaces; len(got) != 2 || got[0] != "facts" || got[1] != "preferences" {
		t.Fatalf("unexpected namespaces: %v", got)
	}
	if !cfg.Dedup.Enabled || cfg.Dedup.Window() != 10*time.Minute {
		t.Fatalf("unexpected dedup defaults: %+v", cfg.Dedup)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[line]
channel_secret = "secret"
access_token = "token"

[agent]
base_url = "http://agent.internal:8080"

[memory]
session_ttl_hours = 48
namespaces = ["facts"]

[dedup]
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Memory.SessionTTL() != 48*time.Hour {
		t.Fatalf("unexpected session ttl: %v", cfg.Memory.SessionTTL())
	}
	if len(cfg.Memory.Namespaces) != 1 {
		t.Fatalf("unexpected namespaces: %v", cfg.Memory.Namespaces)
	}
	if cfg.Dedup.Enabled {
		t.Fatal("dedup should be disabled")
	}
	// Untouched sections keep their defaults.
	if cfg.Postgres.Port != DefaultPGPort {
		t.Fatalf("unexpected pg port: %d", cfg.Postgres.Port)
	}
}

func TestValidateRequiresCredentials(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure without platform credentials")
	}
}
