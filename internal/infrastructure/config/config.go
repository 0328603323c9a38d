// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Plaid         PlaidConfig         `yaml:"plaid"`
	Sync          SyncConfig          `yaml:"sync"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// PlaidConfig holds Plaid API credentials
type PlaidConfig struct {
	ClientID    string `yaml:"client_id"`
	Secret      string `yaml:"secret"`
	Environment string `yaml:"environment"` // "sandbox" or "production"
}

// SyncConfig holds sync pipeline tuning
type SyncConfig struct {
	// DefaultLookbackDays is the fetch window for a first-ever account sync
	DefaultLookbackDays int `yaml:"default_lookback_days"`
	// AccountDelayMS is the pause between accounts to respect provider
	// rate limits
	AccountDelayMS int `yaml:"account_delay_ms"`
	// MaxPages caps cursor-driven pagination so a looping cursor cannot
	// hang a run
	MaxPages int `yaml:"max_pages"`
}

// AccountDelay returns the inter-account pause as a duration.
func (c SyncConfig) AccountDelay() time.Duration {
	return time.Duration(c.AccountDelayMS) * time.Millisecond
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${PLAID_SECRET})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("BANKSYNC_PORT", 8080),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("BANKSYNC_DB_PATH", "banksync.db"),
		},
		Plaid: PlaidConfig{
			ClientID:    os.Getenv("PLAID_CLIENT_ID"),
			Secret:      os.Getenv("PLAID_SECRET"),
			Environment: getEnv("PLAID_ENV", "sandbox"),
		},
		Sync: SyncConfig{
			DefaultLookbackDays: getEnvInt("SYNC_LOOKBACK_DAYS", 7),
			AccountDelayMS:      getEnvInt("SYNC_ACCOUNT_DELAY_MS", 1000),
			MaxPages:            getEnvInt("SYNC_MAX_PAGES", 50),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from the specified path, falls back to
// environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills zero values with sensible defaults
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "banksync.db"
	}
	if c.Plaid.Environment == "" {
		c.Plaid.Environment = "sandbox"
	}
	if c.Sync.DefaultLookbackDays == 0 {
		c.Sync.DefaultLookbackDays = 7
	}
	if c.Sync.AccountDelayMS == 0 {
		c.Sync.AccountDelayMS = 1000
	}
	if c.Sync.MaxPages == 0 {
		c.Sync.MaxPages = 50
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
