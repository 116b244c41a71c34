package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultExcludedSpread = "exchange_acc"

// AppConfig holds all configuration for the spread cleaner.
type AppConfig struct {
	DatabaseURL     string
	LogLevel        string
	Environment     string
	PolicyFile      string
	CronSpec        string        // Used only in daemon mode
	JobTimeout      time.Duration // Upper bound for a single cleaner run
	ExcludedSpreads []string      // Never swept unless named explicitly on the command line
	PushgatewayURL  string        // Optional; metrics are not pushed when empty
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.PolicyFile = os.Getenv("SPREAD_EXPIRE_POLICY_FILE")
	if cfg.PolicyFile == "" {
		cfg.PolicyFile = "spread_expire.yml"
	}

	cfg.CronSpec = os.Getenv("CLEANER_CRON_SPEC")
	if cfg.CronSpec == "" {
		cfg.CronSpec = "0 3 * * *" // Default: 03:00 daily
	}

	cfg.JobTimeout = 30 * time.Minute
	if v := os.Getenv("CLEANER_JOB_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CLEANER_JOB_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid CLEANER_JOB_TIMEOUT: must be positive, got %s", d)
		}
		cfg.JobTimeout = d
	}

	cfg.ExcludedSpreads = []string{defaultExcludedSpread}
	if v, ok := os.LookupEnv("CLEANER_EXCLUDED_SPREADS"); ok {
		cfg.ExcludedSpreads = splitList(v)
	}

	cfg.PushgatewayURL = os.Getenv("PUSHGATEWAY_URL")

	return cfg, nil
}

func splitList(v string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
