package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	MetricsAddr   string
	APIAddr       string

	// Quote source. Empty QuoteWSURL runs on the static simulation provider.
	QuoteWSURL   string
	QuoteTimeout time.Duration
	QuoteMaxAge  time.Duration
	QuoteTTL     time.Duration

	// Scheduler cadences: fast applies during the regular session, slow
	// outside it.
	RefreshInterval     time.Duration
	RefreshIntervalSlow time.Duration
	MonitorInterval     time.Duration
	MonitorIntervalSlow time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		SQLitePath:    getEnv("SQLITE_PATH", "data/paper.db"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),

		QuoteWSURL:   getEnv("QUOTE_WS_URL", ""),
		QuoteTimeout: getDuration("QUOTE_TIMEOUT", 3*time.Second),
		QuoteMaxAge:  getDuration("QUOTE_MAX_AGE", 30*time.Second),
		QuoteTTL:     getDuration("QUOTE_CACHE_TTL", 5*time.Second),

		RefreshInterval:     getDuration("REFRESH_INTERVAL", 5*time.Second),
		RefreshIntervalSlow: getDuration("REFRESH_INTERVAL_SLOW", 30*time.Second),
		MonitorInterval:     getDuration("MONITOR_INTERVAL", 2*time.Second),
		MonitorIntervalSlow: getDuration("MONITOR_INTERVAL_SLOW", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// getDuration parses a duration env var, accepting either a Go duration
// string ("5s") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	log.Printf("[config] invalid duration for %s: %q, using %s", key, v, fallback)
	return fallback
}
