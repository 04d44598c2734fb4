// Package reservoir provides the Reservoir marketplace API client. Every
// read composes the full pipeline: cache-first lookup, curated-list priority,
// bounded-concurrency queueing, local rate limiting and retried HTTP, with
// the normalized result written back to the cache under a priority TTL.
package reservoir

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nftdata/internal/cache"
	"nftdata/internal/core"
	"nftdata/internal/queue"
	"nftdata/internal/ratelimit"
	"nftdata/internal/restclient"
)

const (
	// ServiceName is the logical resource name shared by all Reservoir
	// requests for rate limiting and metrics.
	ServiceName = "reservoir"

	// DefaultBaseURL is the Reservoir API endpoint.
	DefaultBaseURL = "https://api.reservoir.tools"

	// DefaultBatchSize bounds how many collection addresses go into one
	// upstream request.
	DefaultBatchSize = 20

	// DefaultTTL is the cache TTL for generic lookups.
	DefaultTTL = 5 * time.Minute

	// DefaultCuratedTTL is the longer cache TTL for curated collections.
	DefaultCuratedTTL = 30 * time.Minute
)

// PipelineMetrics receives cache and rate limit events. A nil value is
// valid and disables reporting. *observability.Metrics satisfies it.
type PipelineMetrics interface {
	CacheHit(service string)
	CacheMiss(service string)
	RateLimited(resource string)
}

// Config holds Reservoir service configuration.
type Config struct {
	// APIKey is the static Reservoir API key sent on every request.
	APIKey string

	// BaseURL overrides the API endpoint (tests, staging).
	BaseURL string

	// Curated lists collection addresses that get elevated priority and
	// the longer cache TTL.
	Curated []string

	// TTL is the cache TTL for generic lookups (defaults to DefaultTTL).
	TTL time.Duration

	// CuratedTTL is the cache TTL for curated collections (defaults to
	// DefaultCuratedTTL).
	CuratedTTL time.Duration

	// BatchSize bounds addresses per batched request (defaults to
	// DefaultBatchSize).
	BatchSize int

	// MaxRetries overrides the retry limit when > 0.
	MaxRetries int

	// Metrics receives pipeline events (optional).
	Metrics PipelineMetrics
}

// Service is the Reservoir API client. Construct one per configuration and
// inject the shared cache, limiter and queue; the service holds no global
// state of its own.
type Service struct {
	client     *restclient.Client
	cache      cache.Store
	limiter    *ratelimit.Limiter
	queue      *queue.Queue
	curated    map[string]bool
	ttl        time.Duration
	curatedTTL time.Duration
	batchSize  int
	metrics    PipelineMetrics
}

// New creates a Reservoir service using the given pipeline components.
func New(cfg Config, store cache.Store, limiter *ratelimit.Limiter, q *queue.Queue, hooks restclient.Hooks) *Service {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	clientCfg := restclient.DefaultConfig(ServiceName, baseURL)
	clientCfg.Hooks = hooks
	if cfg.MaxRetries > 0 {
		clientCfg.MaxRetries = cfg.MaxRetries
	}

	apiKey := cfg.APIKey
	client := restclient.New(clientCfg, func(req *http.Request) {
		if apiKey != "" {
			req.Header.Set("X-Api-Key", apiKey)
		}
	})

	curated := make(map[string]bool, len(cfg.Curated))
	for _, address := range cfg.Curated {
		curated[strings.ToLower(address)] = true
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	curatedTTL := cfg.CuratedTTL
	if curatedTTL <= 0 {
		curatedTTL = DefaultCuratedTTL
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Service{
		client:     client,
		cache:      store,
		limiter:    limiter,
		queue:      q,
		curated:    curated,
		ttl:        ttl,
		curatedTTL: curatedTTL,
		batchSize:  batchSize,
		metrics:    cfg.Metrics,
	}
}

// SetBaseURL points the client at a different endpoint (tests).
func (s *Service) SetBaseURL(url string) {
	s.client.SetBaseURL(url)
}

// IsCurated reports whether the address is on the curated allow-list.
func (s *Service) IsCurated(address string) bool {
	return s.curated[strings.ToLower(address)]
}

// priorityFor returns the queue priority for a set of addresses: curated
// membership of any member elevates the whole request.
func (s *Service) priorityFor(addresses ...string) int {
	for _, address := range addresses {
		if s.IsCurated(address) {
			return core.PriorityCurated
		}
	}
	return core.PriorityNormal
}

// ttlFor maps a priority to its cache TTL.
func (s *Service) ttlFor(priority int) time.Duration {
	if priority >= core.PriorityCurated {
		return s.curatedTTL
	}
	return s.ttl
}

// fetch is the cached read path. On a miss the request is queued at the
// given priority; the queued closure consumes local rate limit quota before
// issuing the retried HTTP call, and the raw body is written back to the
// cache with a TTL chosen by priority. There is no stale-data fallback and
// no deduplication of concurrent identical misses.
func (s *Service) fetch(ctx context.Context, endpoint string, query map[string]string, priority int) ([]byte, error) {
	key := cache.Key(endpoint, query)

	if data, ok := s.cache.Get(ctx, key); ok {
		if s.metrics != nil {
			s.metrics.CacheHit(ServiceName)
		}
		return data, nil
	}
	if s.metrics != nil {
		s.metrics.CacheMiss(ServiceName)
	}

	body, err := queue.Do(ctx, s.queue, priority, func(ctx context.Context) ([]byte, error) {
		if err := s.limiter.Consume(ServiceName, 1); err != nil {
			if s.metrics != nil {
				s.metrics.RateLimited(ServiceName)
			}
			return nil, err
		}
		resp, err := s.client.DoRaw(ctx, restclient.Request{
			Method:   http.MethodGet,
			Endpoint: endpoint,
			Query:    query,
		})
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, body, s.ttlFor(priority), priority)
	return body, nil
}

// submit is the uncached write path for orders and buys. Writes run at
// elevated priority; they are user-initiated and never served from cache.
func (s *Service) submit(ctx context.Context, method, endpoint string, reqBody any, result any) error {
	_, err := s.queue.Add(ctx, core.PriorityCurated, func(ctx context.Context) (any, error) {
		if err := s.limiter.Consume(ServiceName, 1); err != nil {
			if s.metrics != nil {
				s.metrics.RateLimited(ServiceName)
			}
			return nil, err
		}
		return nil, s.client.Do(ctx, restclient.Request{
			Method:   method,
			Endpoint: endpoint,
			Body:     reqBody,
		}, result)
	})
	return err
}
