// Package config loads server settings from defaults, an optional TOML file
// and the environment, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type Config struct {
	Addr   string `toml:"addr" env:"TODO_API_ADDR"`
	Prefix string `toml:"prefix" env:"TODO_API_PREFIX"`

	DBDriver string `toml:"db-driver" env:"TODO_API_DB_DRIVER"`
	DBSource string `toml:"db-source" env:"DB_SOURCE"`

	JWTSecret  string        `toml:"jwt-secret" env:"JWT_SECRET"`
	AccessTTL  time.Duration `toml:"access-ttl" env:"TODO_API_ACCESS_TTL"`
	RefreshTTL time.Duration `toml:"refresh-ttl" env:"TODO_API_REFRESH_TTL"`

	RequestTimeout time.Duration `toml:"request-timeout" env:"TODO_API_REQUEST_TIMEOUT"`
}

// Default returns the built-in settings. Token lifetimes match the usual
// access/refresh split: minutes for access, a day for refresh.
func Default() Config {
	return Config{
		Addr:           ":8080",
		DBDriver:       DriverPostgres,
		AccessTTL:      5 * time.Minute,
		RefreshTTL:     24 * time.Hour,
		RequestTimeout: 3 * time.Second,
	}
}

// Load layers the TOML file at path (if non-empty) and then the environment
// over Default. A missing file named explicitly is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Prefix = strings.TrimRight(strings.TrimSpace(cfg.Prefix), "/")
	cfg.DBDriver = strings.TrimSpace(cfg.DBDriver)
	return cfg, nil
}

// ValidateStore checks the settings every command touching the database needs.
func (c Config) ValidateStore() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported db driver %q", c.DBDriver)
	}
	if strings.TrimSpace(c.DBSource) == "" {
		return errors.New("DB_SOURCE is required")
	}
	return nil
}

// ValidateServe checks the settings needed to serve HTTP.
func (c Config) ValidateServe() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	return nil
}
