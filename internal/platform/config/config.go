// Package config provides runtime configuration values for the service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory    = "memory"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverPostgREST = "postgrest"
)

// Config holds all service configuration.
type Config struct {
	HTTPAddr          string        `yaml:"http_addr"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	LowStockThreshold int           `yaml:"low_stock_threshold"`
	AlertInterval     time.Duration `yaml:"alert_interval"`
	Timezone          string        `yaml:"timezone"`

	Store StoreConfig `yaml:"store"`
	Log   LogConfig   `yaml:"log"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver  string        `yaml:"driver"`  // memory, postgres, sqlite, postgrest
	DSN     string        `yaml:"dsn"`     // sql drivers
	URL     string        `yaml:"url"`     // postgrest
	APIKey  string        `yaml:"api_key"` // postgrest
	Timeout time.Duration `yaml:"timeout"` // postgrest
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing else is provided.
func Default() Config {
	return Config{
		HTTPAddr:          ":8081",
		ShutdownTimeout:   15 * time.Second,
		LowStockThreshold: 5,
		AlertInterval:     30 * time.Second,
		Timezone:          "Local",
		Store: StoreConfig{
			Driver:  DriverMemory,
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and environment variables, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.Store.Driver, "STORE_DRIVER")
	setString(&cfg.Store.DSN, "DATABASE_DSN")
	setString(&cfg.Store.URL, "SUPABASE_URL")
	setString(&cfg.Store.APIKey, "SUPABASE_KEY")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	return errors.Join(
		setInt(&cfg.LowStockThreshold, "LOW_STOCK_THRESHOLD"),
		setDuration(&cfg.AlertInterval, "ALERT_INTERVAL"),
		setDuration(&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT"),
		setDuration(&cfg.Store.Timeout, "STORE_TIMEOUT"),
		setBool(&cfg.Log.Development, "LOG_DEVELOPMENT"),
	)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store driver %q requires a dsn", c.Store.Driver)
		}
	case DriverPostgREST:
		if c.Store.URL == "" {
			return errors.New("store driver \"postgrest\" requires a url")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.LowStockThreshold < 0 {
		return errors.New("low_stock_threshold must not be negative")
	}
	if c.AlertInterval < time.Second {
		return errors.New("alert_interval must be at least 1s")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured time zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
