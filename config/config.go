/*
config.go - Server configuration

PURPOSE:
  Resolves server settings from three layers, later layers winning:
  1. A .env file in the working directory (never overrides set variables)
  2. Process environment
  3. Command-line flags

KEYS:
  PORT               -port       HTTP port (8080)
  DB_PATH            -db         SQLite path, ":memory:" allowed (recognition.db)
  LOG_LEVEL          -log-level  debug, info, warn, error (info)
  LOG_FORMAT         -log-format json or text (json)
  TIMEZONE           -tz         IANA zone for calendar-day decisions (UTC)
  ALLOWED_ORIGINS    -origins    comma separated CORS origins (*)
  CATALOG_FILE       -catalog    JSON catalog imported into an empty store
  ANNOUNCE_INTERVAL  -announce   special-event announcer period, 0 disables (1m)
  SEED_SCENARIO      -scenario   demo scenario loaded at startup

SEE ALSO:
  - cmd/server/main.go: Consumer
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Port             int
	DBPath           string
	LogLevel         string
	LogFormat        string
	Timezone         string
	AllowedOrigins   []string
	CatalogFile      string
	AnnounceInterval time.Duration
	SeedScenario     string
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads .env, then the environment, then args (typically os.Args[1:]).
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(args)
}

// FromEnv resolves configuration from the environment and args only.
func FromEnv(args []string) (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("%w: PORT: %v", ErrInvalidConfig, err)
	}
	announce, err := time.ParseDuration(getEnv("ANNOUNCE_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("%w: ANNOUNCE_INTERVAL: %v", ErrInvalidConfig, err)
	}

	cfg := &Config{}
	origins := ""

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", getEnv("DB_PATH", "recognition.db"), "SQLite database path")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "json"), "log format (json or text)")
	fs.StringVar(&cfg.Timezone, "tz", getEnv("TIMEZONE", "UTC"), "timezone for calendar days")
	fs.StringVar(&origins, "origins", getEnv("ALLOWED_ORIGINS", "*"), "comma separated CORS origins")
	fs.StringVar(&cfg.CatalogFile, "catalog", getEnv("CATALOG_FILE", ""), "JSON catalog to import into an empty store")
	fs.DurationVar(&cfg.AnnounceInterval, "announce", announce, "special-event announcer period (0 disables)")
	fs.StringVar(&cfg.SeedScenario, "scenario", getEnv("SEED_SCENARIO", ""), "demo scenario to load at startup")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.AllowedOrigins = splitList(origins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.AnnounceInterval < 0 {
		return fmt.Errorf("%w: negative announce interval", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
