// Package config loads runtime configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	DataDir  string `mapstructure:"DATA_DIR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	APIBaseURL string        `mapstructure:"API_BASE_URL"`
	APITimeout time.Duration `mapstructure:"API_TIMEOUT"`

	CodePrefix string `mapstructure:"CODE_PREFIX"`

	SyncInterval  time.Duration `mapstructure:"SYNC_INTERVAL"`
	ProbeInterval time.Duration `mapstructure:"PROBE_INTERVAL"`
	ForceOffline  bool          `mapstructure:"FORCE_OFFLINE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_TIMEOUT", "30s")
	v.SetDefault("CODE_PREFIX", "PSY")
	v.SetDefault("SYNC_INTERVAL", "5m")
	v.SetDefault("PROBE_INTERVAL", "30s")
	v.SetDefault("FORCE_OFFLINE", false)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("DATA_DIR")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("API_BASE_URL")
	v.BindEnv("API_TIMEOUT")
	v.BindEnv("CODE_PREFIX")
	v.BindEnv("SYNC_INTERVAL")
	v.BindEnv("PROBE_INTERVAL")
	v.BindEnv("FORCE_OFFLINE")

	// Try reading .env, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is runnable.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if c.CodePrefix == "" {
		return fmt.Errorf("CODE_PREFIX must not be empty")
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive, got %s", c.APITimeout)
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive, got %s", c.SyncInterval)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("PROBE_INTERVAL must be positive, got %s", c.ProbeInterval)
	}
	return nil
}
