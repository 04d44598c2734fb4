// Package coingecko provides a thin CoinGecko price client composed with the
// same cache, rate limit and queue pipeline as the marketplace client.
// Prices move quickly, so the cache TTL here is short.
package coingecko

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"nftdata/internal/cache"
	"nftdata/internal/core"
	"nftdata/internal/queue"
	"nftdata/internal/ratelimit"
	"nftdata/internal/restclient"
)

const (
	// ServiceName is the logical resource name for rate limiting and metrics.
	ServiceName = "coingecko"

	// DefaultBaseURL is the CoinGecko API endpoint.
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	// DefaultTTL is the short price cache TTL.
	DefaultTTL = 30 * time.Second
)

// Config holds CoinGecko service configuration.
type Config struct {
	// APIKey is the optional pro API key.
	APIKey string

	// BaseURL overrides the API endpoint (tests).
	BaseURL string

	// TTL is the price cache TTL (defaults to DefaultTTL).
	TTL time.Duration
}

// Service is the CoinGecko price client.
type Service struct {
	client  *restclient.Client
	cache   cache.Store
	limiter *ratelimit.Limiter
	queue   *queue.Queue
	ttl     time.Duration
}

// New creates a CoinGecko service using the given pipeline components.
func New(cfg Config, store cache.Store, limiter *ratelimit.Limiter, q *queue.Queue, hooks restclient.Hooks) *Service {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	clientCfg := restclient.DefaultConfig(ServiceName, baseURL)
	clientCfg.Hooks = hooks

	apiKey := cfg.APIKey
	client := restclient.New(clientCfg, func(req *http.Request) {
		if apiKey != "" {
			req.Header.Set("x-cg-pro-api-key", apiKey)
		}
	})

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Service{
		client:  client,
		cache:   store,
		limiter: limiter,
		queue:   q,
		ttl:     ttl,
	}
}

// SetBaseURL points the client at a different endpoint (tests).
func (s *Service) SetBaseURL(url string) {
	s.client.SetBaseURL(url)
}

// GetPrice fetches the spot price of a token (CoinGecko id, e.g.
// "ethereum") in the given fiat currency (e.g. "usd").
func (s *Service) GetPrice(ctx context.Context, token, currency string) (*core.Price, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	currency = strings.ToLower(strings.TrimSpace(currency))
	if token == "" || currency == "" {
		return nil, core.NewInvalidRequestError("token and currency are required", nil)
	}

	query := map[string]string{
		"ids":           token,
		"vs_currencies": currency,
	}
	key := cache.Key("/simple/price", query)

	if data, ok := s.cache.Get(ctx, key); ok {
		return s.parsePrice(data, token, currency)
	}

	body, err := queue.Do(ctx, s.queue, core.PriorityNormal, func(ctx context.Context) ([]byte, error) {
		if err := s.limiter.Consume(ServiceName, 1); err != nil {
			return nil, err
		}
		resp, err := s.client.DoRaw(ctx, restclient.Request{
			Method:   http.MethodGet,
			Endpoint: "/simple/price",
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

	price, err := s.parsePrice(body, token, currency)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, body, s.ttl, core.PriorityNormal)
	return price, nil
}

// parsePrice extracts one quote from a /simple/price payload, e.g.
// {"ethereum": {"usd": 3100.5}}.
func (s *Service) parsePrice(body []byte, token, currency string) (*core.Price, error) {
	value := gjson.GetBytes(body, token+"."+currency)
	if !value.Exists() {
		return nil, core.NewNotFoundError("no price for " + token + " in " + currency)
	}

	return &core.Price{
		Token:     token,
		Currency:  currency,
		Value:     value.Float(),
		FetchedAt: time.Now().UTC(),
	}, nil
}
