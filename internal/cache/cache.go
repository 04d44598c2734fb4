// Package cache provides a TTL cache for upstream API responses.
// Supports an in-memory LRU backend and a Redis backend for multi-instance
// deployments.
package cache

import (
	"context"
	"time"
)

// Store defines the interface for response cache storage.
// Implementations must be safe for concurrent use.
//
// Reads fail open: any backend error is reported as a miss, never
// propagated. Values are JSON-encoded response payloads.
type Store interface {
	// Get retrieves the cached value if present and unexpired.
	// Expired entries are treated as absent and removed.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set inserts or overwrites an entry. A zero ttl applies the store
	// default. Priority is recorded on the entry for observability;
	// callers choose the TTL themselves (curated entries get longer ones).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, priority int)

	// Has reports whether the key is present and unexpired, with the
	// same expiry semantics as Get.
	Has(ctx context.Context, key string) bool

	// Delete removes an entry. Idempotent.
	Delete(ctx context.Context, key string)

	// Clear removes all entries. Idempotent.
	Clear(ctx context.Context)

	// Close releases any resources held by the store.
	Close() error
}
