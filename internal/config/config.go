package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	RedisAddr     string
	RedisDB       int
	RedisPassword string
	HTTPAddr      string
	PollInterval  time.Duration
	FetchTimeout  time.Duration
	LogLevel      string
}

func Load() (*Config, error) {
	cfg := &Config{
		RedisAddr:    getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisDB:      0,
		HTTPAddr:     getHTTPAddr(),
		PollInterval: 5 * time.Second,
		FetchTimeout: 10 * time.Second,
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
	}

	redisDB := os.Getenv("REDIS_DB")
	if redisDB != "" {
		var db int
		if _, err := fmt.Sscanf(redisDB, "%d", &db); err == nil {
			cfg.RedisDB = db
		}
	}

	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if raw := os.Getenv("POLL_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q: %w", raw, err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("POLL_INTERVAL must be positive")
		}
		cfg.PollInterval = interval
	}

	if raw := os.Getenv("FETCH_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid FETCH_TIMEOUT %q: %w", raw, err)
		}
		cfg.FetchTimeout = timeout
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getHTTPAddr() string {
	// PORT is common in cloud environments and wins over HTTP_ADDR
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return getEnvOrDefault("HTTP_ADDR", ":4000")
}
