package stats

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Cache is the memoization port in front of the aggregation entry points.
// Implementations must be safe for concurrent use; they do not need to
// prevent redundant recomputation on a miss, since every aggregation is pure
// and the last writer wins harmlessly.
type Cache interface {
	// Get unmarshals the cached value for key into dest and reports a hit.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Cache lifetimes per entry point, ordered by data volatility.
const (
	ttlRoundShares  = 30 * time.Second
	ttlUserStats    = time.Minute
	ttlPoolHashrate = time.Minute
	ttlLast10       = time.Minute
	ttlLastBlock    = time.Minute
	ttlPoolAccRej   = time.Hour
	ttlAllTime      = 24 * time.Hour
)

// cached runs compute through the cache: a hit is returned as-is, a miss is
// computed and stored best-effort. Cache failures fall through to compute so
// a broken cache backend degrades to slower, never to wrong.
func cached[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func() (T, error)) (T, error) {
	var v T

	if c != nil {
		if hit, err := c.Get(ctx, key, &v); err == nil && hit {
			return v, nil
		}
	}

	v, err := compute()
	if err != nil {
		return v, err
	}

	if c != nil {
		_ = c.Set(ctx, key, v, ttl)
	}
	return v, nil
}

// MemoryCache is an in-process Cache used by tests and as a fallback when no
// Redis backend is configured. Values round-trip through JSON so behavior
// matches the Redis implementation.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || m.now().After(entry.expiresAt) {
		return false, nil
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set implements Cache.
func (m *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Invalidate drops a key.
func (m *MemoryCache) Invalidate(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}
