// Package config loads server settings from the environment, optionally
// overlaid with a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Abdul07in/supplychainx/internal/notify"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	NumWorkers  int

	CacheStaleAfter time.Duration
	CacheRetention  time.Duration
	CacheGCInterval time.Duration

	StockLowThreshold int
	RetryMaxAttempts  int

	WebhookURL      string
	WebhookSecret   string
	RateLimit       int
	RateWindow      time.Duration
	BreakerCooldown time.Duration
	Recipients      notify.Recipients
}

// File is the YAML overlay named by CONFIG_FILE. Set fields win over the
// environment.
type File struct {
	StockLowThreshold int               `yaml:"stock_low_threshold"`
	RateLimit         *int              `yaml:"notify_rate_limit"`
	WebhookURL        string            `yaml:"notify_webhook_url"`
	Recipients        notify.Recipients `yaml:"recipients"`
}

// Load reads configuration from environment variables and the optional
// CONFIG_FILE overlay.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		NumWorkers:        getEnvInt("NUM_WORKERS", 8),
		CacheStaleAfter:   getEnvDuration("CACHE_STALE_AFTER", 3*time.Minute),
		CacheRetention:    getEnvDuration("CACHE_RETENTION", 10*time.Minute),
		CacheGCInterval:   getEnvDuration("CACHE_GC_INTERVAL", time.Minute),
		StockLowThreshold: getEnvInt("STOCK_LOW_THRESHOLD", 20),
		RetryMaxAttempts:  getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		WebhookURL:        getEnv("NOTIFY_WEBHOOK_URL", ""),
		WebhookSecret:     getEnv("NOTIFY_WEBHOOK_SECRET", ""),
		RateLimit:         getEnvInt("NOTIFY_RATE_LIMIT", 0),
		RateWindow:        getEnvDuration("NOTIFY_RATE_WINDOW", notify.DefaultRateWindow),
		BreakerCooldown:   getEnvDuration("NOTIFY_BREAKER_COOLDOWN", notify.DefaultCooldown),
		Recipients:        notify.DefaultRecipients(),
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.StockLowThreshold <= 0 {
		return nil, fmt.Errorf("STOCK_LOW_THRESHOLD must be positive, got %d", cfg.StockLowThreshold)
	}
	if cfg.RetryMaxAttempts < 1 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", cfg.RetryMaxAttempts)
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if f.StockLowThreshold != 0 {
		c.StockLowThreshold = f.StockLowThreshold
	}
	if f.RateLimit != nil {
		c.RateLimit = *f.RateLimit
	}
	if f.WebhookURL != "" {
		c.WebhookURL = f.WebhookURL
	}
	c.Recipients = f.Recipients.Merge(c.Recipients)
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
