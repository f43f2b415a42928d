package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, ":8080", config.HTTPAddr)
	assert.Equal(t, StoreBackendSQLite, config.StoreBackend)
	assert.Equal(t, "localhost:6379", config.RedisAddr)
	assert.Equal(t, "localhost:11211", config.MemcacheAddr)
	assert.Equal(t, 5, config.PageLimit)
	assert.Equal(t, 5, config.MaxAttempts)
	assert.Equal(t, time.Second, config.BackoffBase)
	assert.Equal(t, time.Second, config.FetchMinInterval)

	// Test with environment variables
	os.Setenv("STORE_BACKEND", "redis")
	os.Setenv("REDIS_ADDR", "redis.example.com:6379")
	os.Setenv("REDIS_DB", "1")
	os.Setenv("PAGE_LIMIT", "3")
	os.Setenv("MAX_FETCH_ATTEMPTS", "2")
	os.Setenv("WALMART_URL", "https://example.com/walmart")

	config = LoadConfig()
	assert.Equal(t, StoreBackendRedis, config.StoreBackend)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 1, config.RedisDB)
	assert.Equal(t, 3, config.PageLimit)
	assert.Equal(t, 2, config.MaxAttempts)
	assert.Equal(t, "https://example.com/walmart", config.WalmartURL)

	// Clean up
	os.Unsetenv("STORE_BACKEND")
	os.Unsetenv("REDIS_ADDR")
	os.Unsetenv("REDIS_DB")
	os.Unsetenv("PAGE_LIMIT")
	os.Unsetenv("MAX_FETCH_ATTEMPTS")
	os.Unsetenv("WALMART_URL")
}

func TestValidate(t *testing.T) {
	cfg := LoadConfig()
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.StoreBackend = "mongo"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.PageLimit = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MaxAttempts = -1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.ProxyURL = "http://proxy.example.com"
	bad.ProxyAPIKey = ""
	assert.Error(t, bad.Validate())
}
