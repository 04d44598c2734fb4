package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisPrefix namespaces gateway keys in a shared Redis.
	DefaultRedisPrefix = "nftdata:responses:"

	// DefaultRedisTTL applies when Set is called with a zero ttl.
	DefaultRedisTTL = 5 * time.Minute
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379" or "redis://:password@host:6379/0")
	URL string

	// Prefix namespaces cache keys (defaults to DefaultRedisPrefix)
	Prefix string

	// TTL is the default time-to-live for cached data
	TTL time.Duration
}

// redisEnvelope wraps the cached payload so the entry priority survives the
// round trip. Expiry is delegated to the Redis server; the LRU capacity
// bound does not apply to this backend.
type redisEnvelope struct {
	Value    json.RawMessage `json:"v"`
	Priority int             `json:"p"`
}

// RedisStore implements Store using Redis for distributed caching.
// This is suitable for multi-instance deployments behind a load balancer.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedisStore creates a new Redis-backed response cache.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}

	slog.Info("redis cache connected", "prefix", prefix, "default_ttl", ttl)

	return &RedisStore{
		client:     client,
		prefix:     prefix,
		defaultTTL: ttl,
	}, nil
}

// Get retrieves a cached value from Redis. Errors are treated as misses.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("redis cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("redis cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return env.Value, true
}

// Set stores a value in Redis with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, priority int) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	data, err := json.Marshal(redisEnvelope{Value: value, Priority: priority})
	if err != nil {
		slog.Warn("redis cache marshal failed", "key", key, "error", err)
		return
	}

	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		slog.Warn("redis cache write failed", "key", key, "error", err)
	}
}

// Has reports whether the key exists and has not expired.
func (s *RedisStore) Has(ctx context.Context, key string) bool {
	n, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// Delete removes an entry.
func (s *RedisStore) Delete(ctx context.Context, key string) {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		slog.Warn("redis cache delete failed", "key", key, "error", err)
	}
}

// Clear removes all entries under the store's prefix.
func (s *RedisStore) Clear(ctx context.Context) {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			slog.Warn("redis cache delete failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		slog.Warn("redis cache scan failed", "error", err)
	}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
