// Package config holds the process-wide defaults forwarded to the HTTP
// fetcher and cache construction. Values come from the environment, with an
// optional .env file loaded first.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the tunable defaults. The zero value is not useful; start
// from Default or FromEnv.
type Config struct {
	HTTPTimeout  time.Duration
	RetryTimes   int
	RetryDelay   time.Duration
	PoolSize     int
	CacheEnabled bool
	CacheTTL     time.Duration
	CacheBackend string
	CachePath    string
	LogLevel     string
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		HTTPTimeout:  10 * time.Second,
		RetryTimes:   3,
		RetryDelay:   1 * time.Second,
		PoolSize:     10,
		CacheEnabled: true,
		CacheTTL:     1 * time.Hour,
		CacheBackend: "sqlite",
		CachePath:    "",
		LogLevel:     "info",
	}
}

// FromEnv builds a Config from QUOTES_* environment variables over the
// defaults. A .env file in the working directory is honored when present.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Default()
	cfg.HTTPTimeout = envDuration("QUOTES_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.RetryTimes = envInt("QUOTES_RETRY_TIMES", cfg.RetryTimes)
	cfg.RetryDelay = envDuration("QUOTES_RETRY_DELAY", cfg.RetryDelay)
	cfg.PoolSize = envInt("QUOTES_POOL_SIZE", cfg.PoolSize)
	cfg.CacheEnabled = envBool("QUOTES_CACHE_ENABLED", cfg.CacheEnabled)
	cfg.CacheTTL = envDuration("QUOTES_CACHE_TTL", cfg.CacheTTL)
	cfg.CacheBackend = envString("QUOTES_CACHE_BACKEND", cfg.CacheBackend)
	cfg.CachePath = envString("QUOTES_CACHE_PATH", cfg.CachePath)
	cfg.LogLevel = envString("QUOTES_LOG_LEVEL", cfg.LogLevel)
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envDuration accepts either a time.ParseDuration string or a bare number of
// seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
