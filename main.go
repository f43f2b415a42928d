package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pricescope/marketworker/config"
	"pricescope/marketworker/internal/api"
	"pricescope/marketworker/internal/fetch"
	"pricescope/marketworker/internal/metrics"
	"pricescope/marketworker/internal/pipeline"
	"pricescope/marketworker/internal/registry"
	"pricescope/marketworker/internal/store"
	"pricescope/marketworker/logger"
	"pricescope/marketworker/services/cache"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("store_backend", cfg.StoreBackend).
		Int("page_limit", cfg.PageLimit).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	documents, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer documents.Close()

	m := metrics.New()
	gateway := store.NewGateway(documents, m)

	fetcher := fetch.New(fetch.Options{
		MaxAttempts:  cfg.MaxAttempts,
		BackoffBase:  cfg.BackoffBase,
		Timeout:      cfg.FetchTimeout,
		MinInterval:  cfg.FetchMinInterval,
		CooldownTime: cfg.CooldownTime,
		ProxyURL:     cfg.ProxyURL,
		ProxyAPIKey:  cfg.ProxyAPIKey,
		RendererAddr: cfg.RendererAddr,
	}, newCooldownCache(cfg), m)

	sites := registry.NewDefault(cfg)
	log.Info().Int("site_count", sites.Len()).Msg("Registered site configs")

	runner := pipeline.NewRunner(sites, fetcher, gateway, cfg.PageLimit, cfg.MaxAttempts)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewServer(runner, gateway, m).Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	serverDone := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Starting HTTP server")
		serverDone <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server exited with error")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}

// openStore selects the document store backend from configuration.
func openStore(cfg config.Config) (store.DocumentStore, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		return store.NewRedisStore(cfg.RedisAddr, cfg.RedisDB), nil
	default:
		return store.NewSQLiteStore(cfg.SQLitePath)
	}
}

// newCooldownCache prefers memcache and falls back to the in-process cache
// when no memcache address is configured.
func newCooldownCache(cfg config.Config) cache.CacheService {
	if cfg.MemcacheAddr != "" {
		return cache.NewMemcacheService(cfg.MemcacheAddr)
	}
	return cache.NewMemoryService()
}
