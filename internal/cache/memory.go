package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	// DefaultTTL applies when Set is called with a zero ttl.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxSize bounds the number of live entries.
	DefaultMaxSize = 1000
)

// entry is a single cached value. Never readable past expiresAt.
type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	priority  int
}

// MemoryStore implements Store with in-process LRU + TTL semantics.
// Eviction is a pure capacity policy independent of TTL; both run at
// read/write time, with Prune available as an explicit sweep.
type MemoryStore struct {
	mu         sync.Mutex
	maxSize    int
	defaultTTL time.Duration
	order      *list.List // front = most recently used
	items      map[string]*list.Element
	now        func() time.Time
}

// MemoryConfig holds memory store tunables.
type MemoryConfig struct {
	// MaxSize is the entry capacity (defaults to DefaultMaxSize).
	MaxSize int

	// TTL is the default time-to-live (defaults to DefaultTTL).
	TTL time.Duration
}

// NewMemoryStore creates an in-memory LRU store.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		maxSize:    maxSize,
		defaultTTL: ttl,
		order:      list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

// Get retrieves the cached value if present and unexpired. A hit moves the
// entry to the front of the LRU order.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if !s.now().Before(e.expiresAt) {
		s.removeElement(el)
		return nil, false
	}
	s.order.MoveToFront(el)
	return e.value, true
}

// Set inserts or overwrites an entry, evicting the least-recently-used
// entry first when at capacity.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration, priority int) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = s.now().Add(ttl)
		e.priority = priority
		s.order.MoveToFront(el)
		return
	}

	if s.order.Len() >= s.maxSize {
		if oldest := s.order.Back(); oldest != nil {
			s.removeElement(oldest)
		}
	}

	el := s.order.PushFront(&entry{
		key:       key,
		value:     value,
		expiresAt: s.now().Add(ttl),
		priority:  priority,
	})
	s.items[key] = el
}

// Has reports whether the key is present and unexpired, without touching
// the LRU order.
func (s *MemoryStore) Has(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	if !s.now().Before(el.Value.(*entry).expiresAt) {
		s.removeElement(el)
		return false
	}
	return true
}

// Delete removes an entry.
func (s *MemoryStore) Delete(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		s.removeElement(el)
	}
}

// Clear removes all entries.
func (s *MemoryStore) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order.Init()
	s.items = make(map[string]*list.Element)
}

// Prune removes every expired entry in map iteration order.
func (s *MemoryStore) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, el := range s.items {
		if !now.Before(el.Value.(*entry).expiresAt) {
			s.removeElement(el)
		}
	}
}

// Len returns the number of live entries, counting ones whose TTL has
// passed but that have not been swept yet.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// EntryPriority returns the priority recorded on an unexpired entry.
func (s *MemoryStore) EntryPriority(key string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return 0, false
	}
	e := el.Value.(*entry)
	if !s.now().Before(e.expiresAt) {
		return 0, false
	}
	return e.priority, true
}

// EntryExpiry returns the expiry time recorded on an unexpired entry.
func (s *MemoryStore) EntryExpiry(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return time.Time{}, false
	}
	e := el.Value.(*entry)
	if !s.now().Before(e.expiresAt) {
		return time.Time{}, false
	}
	return e.expiresAt, true
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// removeElement unlinks an entry. Caller holds the lock.
func (s *MemoryStore) removeElement(el *list.Element) {
	s.order.Remove(el)
	delete(s.items, el.Value.(*entry).key)
}
