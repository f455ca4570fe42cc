package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":8080" || cfg.TokenTTL != 12*time.Hour {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Stale.Warn != 10 || cfg.Stale.Critical != 30 {
		t.Fatalf("stale defaults = %+v", cfg.Stale)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
listen_addr: ":9090"
jwt_key: "secret"
it_users: ["holdenc"]
stale_thresholds:
  warn_minutes: 5
  alert_minutes: 15
  critical_minutes: 25
  incident_stale_minutes: 30
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":9090" || cfg.JWTKey != "secret" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Stale.Warn != 5 || cfg.Stale.Alert != 15 {
		t.Fatalf("stale = %+v", cfg.Stale)
	}
	// Untouched keys keep their defaults.
	if cfg.TokenTTL != 12*time.Hour || cfg.PushWorkers != 4 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("want error for missing file")
	}
}
