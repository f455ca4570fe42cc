// Package config loads server configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scmc-ops/hoscad/internal/service"
)

// VAPID holds the web push signing material.
type VAPID struct {
	PublicKey  string `yaml:"public_key"`
	PrivateKey string `yaml:"private_key"`
	Subscriber string `yaml:"subscriber"`
}

// LoginLimiter configures the failed-login lockout.
type LoginLimiter struct {
	Window   time.Duration `yaml:"window"`
	MaxFails int           `yaml:"max_fails"`
	BlockFor time.Duration `yaml:"block_for"`
}

// Config is the full server configuration. An empty DatabaseDSN selects
// the in-memory backend, which is how the standalone and test modes run.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	DatabaseDSN string `yaml:"database_dsn"`

	JWTKey   string        `yaml:"jwt_key"`
	TokenTTL time.Duration `yaml:"token_ttl"`
	ITUsers  []string      `yaml:"it_users"`

	Stale   service.StaleThresholds `yaml:"stale_thresholds"`
	Limiter LoginLimiter            `yaml:"login_limiter"`

	VAPID         VAPID         `yaml:"vapid"`
	PushWorkers   int           `yaml:"push_workers"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		TokenTTL:      12 * time.Hour,
		Stale:         service.DefaultStaleThresholds(),
		Limiter:       LoginLimiter{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute},
		PushWorkers:   4,
		PurgeInterval: time.Hour,
	}
}

// Load reads a YAML config file on top of the defaults. Path "" returns
// the defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
