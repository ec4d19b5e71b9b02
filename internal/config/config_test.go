package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, LimiterMemory, cfg.RateLimiter)
	assert.Equal(t, 10, cfg.PushMaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.PushWindow)
	assert.Equal(t, 1.0, cfg.RegisterRPS)
	assert.Equal(t, 5, cfg.RegisterBurst)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOULDER_HTTP_PORT", "9090")
	t.Setenv("BOULDER_STORAGE", "redis")
	t.Setenv("BOULDER_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("BOULDER_RATE_LIMITER", "redis")
	t.Setenv("BOULDER_PUSH_WINDOW", "90s")
	t.Setenv("BOULDER_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, StorageRedis, cfg.Storage)
	assert.Equal(t, LimiterRedis, cfg.RateLimiter)
	assert.Equal(t, 90*time.Second, cfg.PushWindow)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("BOULDER_HTTP_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidateRequiresBackendSettings(t *testing.T) {
	t.Setenv("BOULDER_STORAGE", "postgres")
	t.Setenv("BOULDER_RATE_LIMITER", "redis")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOULDER_POSTGRES_DSN")
	assert.Contains(t, err.Error(), "BOULDER_REDIS_URL")
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("BOULDER_STORAGE", "cassandra")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}
