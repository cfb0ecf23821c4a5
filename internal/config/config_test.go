package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, ":4000", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("PORT", "9000")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("FETCH_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.FetchTimeout)
}

func TestLoadRejectsBadInterval(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "never")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("POLL_INTERVAL", "-1s")
	_, err = Load()
	assert.Error(t, err)
}
