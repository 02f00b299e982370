/*
Package config loads server configuration from a TOML file.

PURPOSE:
  Centralizes the knobs the server binary needs: listen port, database
  path, CORS origins, and the periodic balance-audit sweep. Flags on the
  binary override the file; the file overrides the defaults.

USAGE:
  cfg := config.Default()
  if path != "" {
      cfg, err = config.Load(path)
  }
*/
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	CORS     CORSConfig     `toml:"cors"`
	Audit    AuditConfig    `toml:"audit"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int `toml:"port"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// CORSConfig holds cross-origin settings for browser clients.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// AuditConfig controls the periodic balance-audit sweep.
type AuditConfig struct {
	Enabled         bool `toml:"enabled"`
	IntervalMinutes int  `toml:"interval_minutes"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "./data/economy.db"},
		CORS:     CORSConfig{AllowedOrigins: []string{"*"}},
		Audit:    AuditConfig{Enabled: true, IntervalMinutes: 60},
	}
}

// Load reads a TOML file over the defaults, so a partial file only
// overrides the sections it names.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.Audit.Enabled && c.Audit.IntervalMinutes < 1 {
		return fmt.Errorf("audit interval must be at least 1 minute, got %d", c.Audit.IntervalMinutes)
	}
	return nil
}
