package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnvUsesDefaultsWhenUnset(t *testing.T) {
	cfg := FromEnv()
	require.Equal(t, Default(), cfg)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("QUOTES_HTTP_TIMEOUT", "30s")
	t.Setenv("QUOTES_RETRY_TIMES", "5")
	t.Setenv("QUOTES_RETRY_DELAY", "2")
	t.Setenv("QUOTES_POOL_SIZE", "20")
	t.Setenv("QUOTES_CACHE_ENABLED", "false")
	t.Setenv("QUOTES_CACHE_TTL", "7200")
	t.Setenv("QUOTES_CACHE_BACKEND", "jsonl")
	t.Setenv("QUOTES_CACHE_PATH", "/tmp/q.jsonl")
	t.Setenv("QUOTES_LOG_LEVEL", "debug")

	cfg := FromEnv()

	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.Equal(t, 5, cfg.RetryTimes)
	require.Equal(t, 2*time.Second, cfg.RetryDelay)
	require.Equal(t, 20, cfg.PoolSize)
	require.False(t, cfg.CacheEnabled)
	require.Equal(t, 2*time.Hour, cfg.CacheTTL)
	require.Equal(t, "jsonl", cfg.CacheBackend)
	require.Equal(t, "/tmp/q.jsonl", cfg.CachePath)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("QUOTES_RETRY_TIMES", "lots")
	t.Setenv("QUOTES_CACHE_ENABLED", "maybe")
	t.Setenv("QUOTES_HTTP_TIMEOUT", "soon")

	cfg := FromEnv()

	require.Equal(t, Default().RetryTimes, cfg.RetryTimes)
	require.Equal(t, Default().CacheEnabled, cfg.CacheEnabled)
	require.Equal(t, Default().HTTPTimeout, cfg.HTTPTimeout)
}
