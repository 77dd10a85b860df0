// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverFS        = "fs"
	DriverPostgres  = "postgres"
	DriverDatastore = "datastore"
)

// Config describes the secretshare server configuration.
type Config struct {
	Addr    string `env:"ADDR"     envDefault:":3000"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3000"`

	StoreDriver        string `env:"STORE_DRIVER"        envDefault:"fs"`
	StoragePath        string `env:"STORAGE_PATH"        envDefault:"./data"`
	DatabaseDSN        string `env:"DATABASE_DSN"`
	DatastoreProject   string `env:"DATASTORE_PROJECT"`
	DatastoreNamespace string `env:"DATASTORE_NAMESPACE"`

	SessionSecret   string        `env:"SESSION_SECRET"`
	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"24h"`
	RedisAddr       string        `env:"REDIS_ADDR"`

	GoogleClientID       string `env:"CLIENT_ID"`
	GoogleClientSecret   string `env:"CLIENT_SECRET"`
	FacebookClientID     string `env:"FACEBOOK_ID"`
	FacebookClientSecret string `env:"FACEBOOK_SECRET"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads envFile into the process environment when it exists, then
// parses the environment. Variables already set win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return parse(env.Options{})
}

// Parse builds a Config from environ instead of the process environment.
func Parse(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected store driver has what it needs.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverFS:
		if c.StoragePath == "" {
			return errors.New("STORAGE_PATH is required for the fs store")
		}
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return errors.New("DATABASE_DSN is required for the postgres store")
		}
	case DriverDatastore:
		if c.DatastoreProject == "" {
			return errors.New("DATASTORE_PROJECT is required for the datastore store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// GoogleEnabled reports whether Google credentials are configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// FacebookEnabled reports whether Facebook credentials are configured.
func (c *Config) FacebookEnabled() bool {
	return c.FacebookClientID != "" && c.FacebookClientSecret != ""
}

// CallbackURL is the provider callback registered with the provider console.
func (c *Config) CallbackURL(provider string) string {
	return c.BaseURL + "/auth/" + provider + "/secrets"
}

// NewLogger builds the slog logger selected by LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown LOG_LEVEL %q", s)
	}
	return level, nil
}
