package config

// Package config handles configuration loading for stocknews.
// It supports YAML config files with environment variable overrides.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STOCKNEWS_SERVICE_BASE_URL.
const EnvPrefix = "STOCKNEWS"

// Config represents the complete application configuration.
type Config struct {
	Service ServiceConfig `mapstructure:"service" yaml:"service"`
	Store   StoreConfig   `mapstructure:"store"   yaml:"store"`
	Ingest  IngestConfig  `mapstructure:"ingest"  yaml:"ingest"`
	Mock    MockConfig    `mapstructure:"mock"    yaml:"mock"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServiceConfig describes the remote analysis service.
type ServiceConfig struct {
	BaseURL         string `mapstructure:"base_url"         yaml:"base_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"  yaml:"timeout_seconds"`
	Language        string `mapstructure:"language"         yaml:"language"`
	FollowRedirects bool   `mapstructure:"follow_redirects" yaml:"follow_redirects"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"    yaml:"dsn"`
}

// FeedConfig is one RSS/Atom source.
type FeedConfig struct {
	Name   string `mapstructure:"name"   yaml:"name"`
	URL    string `mapstructure:"url"    yaml:"url"`
	Ticker string `mapstructure:"ticker" yaml:"ticker"`
}

// IngestConfig holds feed ingestion settings.
type IngestConfig struct {
	Feeds          []FeedConfig `mapstructure:"feeds"           yaml:"feeds"`
	RatePerSecond  float64      `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst          int          `mapstructure:"burst"           yaml:"burst"`
	DedupeDistance int          `mapstructure:"dedupe_distance" yaml:"dedupe_distance"`
	BatchSize      int          `mapstructure:"batch_size"      yaml:"batch_size"`
	MaxPerFeed     int          `mapstructure:"max_per_feed"    yaml:"max_per_feed"`
}

// MockConfig holds settings for the local stand-in analysis service.
type MockConfig struct {
	Addr        string   `mapstructure:"addr"         yaml:"addr"`
	Fixtures    string   `mapstructure:"fixtures"     yaml:"fixtures"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.stocknews/config.yaml (home directory)
//  3. /etc/stocknews/config.yaml (system)
//
// Environment variables override config file values.
// Format: STOCKNEWS_<SECTION>_<KEY>, e.g., STOCKNEWS_SERVICE_BASE_URL
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".stocknews"))
	v.AddConfigPath("/etc/stocknews")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Service defaults
	v.SetDefault("service.base_url", "http://localhost:8000")
	v.SetDefault("service.timeout_seconds", 30)
	v.SetDefault("service.language", "German")
	v.SetDefault("service.follow_redirects", true)

	// Store defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "stock_news.db")

	// Ingest defaults
	v.SetDefault("ingest.rate_per_second", 2.0)
	v.SetDefault("ingest.burst", 2)
	v.SetDefault("ingest.dedupe_distance", 3)
	v.SetDefault("ingest.batch_size", 50)
	v.SetDefault("ingest.max_per_feed", 50)

	// Mock service defaults
	v.SetDefault("mock.addr", "127.0.0.1:8000")
	v.SetDefault("mock.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate rejects values that cannot work at all. The service timeout is
// deliberately not checked: zero or negative disables it.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Service.BaseURL) == "" {
		return fmt.Errorf("service.base_url must not be empty")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver %q: want sqlite or postgres", c.Store.Driver)
	}
	for i, f := range c.Ingest.Feeds {
		if f.URL == "" {
			return fmt.Errorf("ingest.feeds[%d]: url is required", i)
		}
	}
	return nil
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if dsn := os.Getenv(EnvPrefix + "_STORE_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
