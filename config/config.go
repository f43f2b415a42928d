package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends selectable via STORE_BACKEND
const (
	StoreBackendSQLite = "sqlite"
	StoreBackendRedis  = "redis"
)

// Config represents the application configuration
type Config struct {
	// HTTP API configuration
	HTTPAddr string

	// Store configuration
	StoreBackend string
	SQLitePath   string
	RedisAddr    string
	RedisDB      int

	// Memcache configuration (fetch cooldown cache)
	MemcacheAddr string

	// Fetcher configuration
	PageLimit        int
	MaxAttempts      int
	BackoffBase      time.Duration
	FetchTimeout     time.Duration
	FetchMinInterval time.Duration
	CooldownTime     time.Duration

	// Optional fetch capabilities
	ProxyURL     string
	ProxyAPIKey  string
	RendererAddr string

	// Search URLs for the built-in site configs
	WalmartURL    string
	AmazonURL     string
	BestBuyURL    string
	AliExpressURL string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	pageLimit, _ := strconv.Atoi(getEnv("PAGE_LIMIT", "5"))
	maxAttempts, _ := strconv.Atoi(getEnv("MAX_FETCH_ATTEMPTS", "5"))
	backoffMs, _ := strconv.Atoi(getEnv("BACKOFF_BASE_MS", "1000"))
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "30"))
	minIntervalMs, _ := strconv.Atoi(getEnv("FETCH_MIN_INTERVAL_MS", "1000"))
	cooldown, _ := strconv.Atoi(getEnv("FETCH_COOLDOWN_SECONDS", "300"))

	return Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		StoreBackend:     getEnv("STORE_BACKEND", StoreBackendSQLite),
		SQLitePath:       getEnv("SQLITE_PATH", "marketworker.db"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:          redisDB,
		MemcacheAddr:     getEnv("MEMCACHE_ADDR", "localhost:11211"),
		PageLimit:        pageLimit,
		MaxAttempts:      maxAttempts,
		BackoffBase:      time.Duration(backoffMs) * time.Millisecond,
		FetchTimeout:     time.Duration(fetchTimeout) * time.Second,
		FetchMinInterval: time.Duration(minIntervalMs) * time.Millisecond,
		CooldownTime:     time.Duration(cooldown) * time.Second,
		ProxyURL:         getEnv("PROXY_URL", ""),
		ProxyAPIKey:      getEnv("PROXY_API_KEY", ""),
		RendererAddr:     getEnv("RENDERER_ADDR", ""),
		WalmartURL:       getEnv("WALMART_URL", "https://www.walmart.com/search/?query=laptop"),
		AmazonURL:        getEnv("AMAZON_URL", "https://www.amazon.com/s?k=laptop"),
		BestBuyURL:       getEnv("BESTBUY_URL", "https://www.bestbuy.com/site/searchpage.jsp?st=laptop"),
		AliExpressURL:    getEnv("ALIEXPRESS_URL", "https://www.aliexpress.com/wholesale?SearchText=laptop"),
		Environment:      getEnv("MARKETWORKER_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	if c.StoreBackend != StoreBackendSQLite && c.StoreBackend != StoreBackendRedis {
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.StoreBackend == StoreBackendSQLite && c.SQLitePath == "" {
		return fmt.Errorf("sqlite backend requires SQLITE_PATH")
	}
	if c.PageLimit <= 0 {
		return fmt.Errorf("page limit must be positive, got %d", c.PageLimit)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max fetch attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.ProxyURL != "" && c.ProxyAPIKey == "" {
		return fmt.Errorf("PROXY_URL is set but PROXY_API_KEY is empty")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
