// Package ratelimit implements a fixed-window quota per logical resource,
// used to throttle outbound calls to upstream services.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"nftdata/internal/core"
)

const (
	// DefaultMaxRequests is the per-window quota.
	DefaultMaxRequests = 60

	// DefaultWindow is the quota window length.
	DefaultWindow = time.Minute
)

// window tracks consumption for one resource. Resets atomically when the
// window has passed.
type window struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window rate limiter keyed by resource name
// (e.g. "reservoir"). It never sleeps or auto-retries; callers that hit the
// quota receive a rate-limit error carrying the remaining wait and decide
// themselves whether to wait or propagate.
type Limiter struct {
	mu          sync.Mutex
	windows     map[string]*window
	maxRequests int
	windowLen   time.Duration
	now         func() time.Time
}

// Config holds limiter tunables.
type Config struct {
	// MaxRequests is the quota per window (defaults to DefaultMaxRequests).
	MaxRequests int

	// Window is the window length (defaults to DefaultWindow).
	Window time.Duration
}

// New creates a limiter with the given quota and window.
func New(cfg Config) *Limiter {
	maxRequests := cfg.MaxRequests
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	windowLen := cfg.Window
	if windowLen <= 0 {
		windowLen = DefaultWindow
	}
	return &Limiter{
		windows:     make(map[string]*window),
		maxRequests: maxRequests,
		windowLen:   windowLen,
		now:         time.Now,
	}
}

// Consume records cost units of usage against the key's current window.
// Returns a rate-limit error with a RetryAfter hint when the quota would be
// exceeded; the window count is left untouched in that case.
func (l *Limiter) Consume(key string, cost int) error {
	if cost <= 0 {
		cost = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.windowLen)}
		l.windows[key] = w
	}

	if w.count+cost > l.maxRequests {
		wait := w.resetAt.Sub(now)
		return core.NewRateLimitError(key,
			fmt.Sprintf("rate limit exceeded for %q: %d/%d in window, retry in %dms",
				key, w.count, l.maxRequests, wait.Milliseconds()),
			wait)
	}

	w.count += cost
	return nil
}

// Remaining returns the unused quota for the key's active window, or the
// full quota when the window has expired but not yet been reset.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !l.now().Before(w.resetAt) {
		return l.maxRequests
	}
	return l.maxRequests - w.count
}

// Reset clears the key's window.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Cleanup removes expired windows to keep the map from growing without
// bound across many resource keys.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
