// Package app wires the gateway together: one cache, one rate limiter and
// one request queue are built from configuration and injected into every
// upstream service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"nftdata/config"
	"nftdata/internal/cache"
	"nftdata/internal/observability"
	"nftdata/internal/providers/coingecko"
	"nftdata/internal/providers/reservoir"
	"nftdata/internal/providers/social"
	"nftdata/internal/queue"
	"nftdata/internal/ratelimit"
	"nftdata/internal/restclient"
	"nftdata/internal/server"
)

// App holds the assembled application.
type App struct {
	cfg    *config.Config
	store  cache.Store
	server *server.Server
}

// New builds the application from configuration.
func New(cfg *config.Config) (*App, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimit.Window,
	})
	q := queue.New(cfg.Queue.MaxConcurrent)

	var metrics *observability.Metrics
	if cfg.Server.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
		observability.RegisterQueueGauges(nil, q)
	}

	market := reservoir.New(reservoir.Config{
		APIKey:     cfg.Reservoir.APIKey,
		BaseURL:    cfg.Reservoir.BaseURL,
		Curated:    cfg.CuratedAddresses(),
		TTL:        cfg.Cache.TTL,
		CuratedTTL: cfg.Reservoir.CuratedTTL,
		BatchSize:  cfg.Reservoir.BatchSize,
		MaxRetries: cfg.Reservoir.MaxRetries,
		Metrics:    pipelineMetrics(metrics),
	}, store, limiter, q, hooks(metrics))

	price := coingecko.New(coingecko.Config{
		APIKey: cfg.CoinGecko.APIKey,
	}, store, limiter, q, hooks(metrics))

	socials := social.New(social.Config{
		TwitterBearerToken: cfg.Social.TwitterBearerToken,
		DiscordBotToken:    cfg.Social.DiscordBotToken,
		Accounts:           socialAccounts(cfg.Curated),
	}, store, limiter, q, hooks(metrics))

	handler := server.NewHandler(market, price, socials)
	srv := server.New(handler, &server.Config{
		MasterKey:       cfg.Server.MasterKey,
		MetricsEnabled:  cfg.Server.MetricsEnabled,
		MetricsEndpoint: cfg.Server.MetricsEndpoint,
	})

	return &App{
		cfg:    cfg,
		store:  store,
		server: srv,
	}, nil
}

// Start runs the HTTP server until Shutdown is called.
func (a *App) Start() error {
	addr := ":" + a.cfg.Server.Port
	slog.Info("starting server", "addr", addr, "curated", len(a.cfg.Curated))
	return a.server.Start(addr)
}

// Shutdown stops the server and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// newStore selects the cache backend: Redis when configured, in-memory LRU
// otherwise.
func newStore(cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.RedisURL != "" {
		store, err := cache.NewRedisStore(cache.RedisConfig{
			URL: cfg.Cache.RedisURL,
			TTL: cfg.Cache.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		slog.Info("using redis cache")
		return store, nil
	}

	return cache.NewMemoryStore(cache.MemoryConfig{
		MaxSize: cfg.Cache.MaxSize,
		TTL:     cfg.Cache.TTL,
	}), nil
}

// socialAccounts derives the address to community-account mapping from the
// curated list.
func socialAccounts(curated []config.CuratedCollection) map[string]social.Links {
	accounts := make(map[string]social.Links, len(curated))
	for _, entry := range curated {
		if entry.Twitter == "" && entry.Discord == "" {
			continue
		}
		accounts[strings.ToLower(entry.Address)] = social.Links{
			TwitterHandle:  entry.Twitter,
			DiscordGuildID: entry.Discord,
		}
	}
	return accounts
}

// hooks converts a possibly-nil *Metrics to the Hooks interface without the
// nil-interface trap.
func hooks(m *observability.Metrics) restclient.Hooks {
	if m == nil {
		return nil
	}
	return m
}

// pipelineMetrics does the same for the cache/rate-limit event interface.
func pipelineMetrics(m *observability.Metrics) reservoir.PipelineMetrics {
	if m == nil {
		return nil
	}
	return m
}
