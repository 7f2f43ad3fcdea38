package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/folio-service/folio_service/pkg/metrics"
)

// FetchFunc produces a fresh value for a cache key
type FetchFunc[V any] func(ctx context.Context) (V, error)

// entry is one keyed cache slot. Its lock serializes refreshes for the key
// and makes the data swap atomic from the reader's perspective.
type entry[V any] struct {
	mu            sync.Mutex
	data          V
	lastRefreshed time.Time
	initialized   bool
}

// Cache is a keyed in-process cache with TTL-driven staleness. Refresh is
// mutually exclusive per key; concurrent stale readers collapse into a
// single fetch and all serve its result. A failed fetch keeps the previous
// data; GetOrRefresh never surfaces a fetch error.
type Cache[V any] struct {
	name    string
	logger  *zap.Logger
	clock   func() time.Time
	mu      sync.Mutex
	entries map[string]*entry[V]
}

// New creates a named cache. The name labels its metrics.
func New[V any](name string, logger *zap.Logger) *Cache[V] {
	return &Cache[V]{
		name:    name,
		logger:  logger,
		clock:   time.Now,
		entries: make(map[string]*entry[V]),
	}
}

func (c *Cache[V]) entry(key string) *entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry[V]{}
		c.entries[key] = e
	}
	return e
}

// GetOrRefresh returns the cached value for key, refreshing it first when the
// entry is older than ttl or force is set. Callers arriving while a refresh
// is in flight block on the key lock and re-check freshness afterwards, so
// they reuse the refresh result instead of fetching again.
//
// On fetch failure the previous data is served as-is. A first-ever fetch that
// fails still stamps the entry so every subsequent request within the TTL
// window does not hammer the upstream.
func (c *Cache[V]) GetOrRefresh(ctx context.Context, key string, ttl time.Duration, force bool, fetch FetchFunc[V]) V {
	e := c.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := c.clock()
	if !force && e.initialized && now.Sub(e.lastRefreshed) < ttl {
		metrics.CacheHitsTotal.WithLabelValues(c.name).Inc()
		return e.data
	}

	metrics.CacheMissesTotal.WithLabelValues(c.name).Inc()
	c.refreshLocked(ctx, e, key, fetch)
	return e.data
}

// TryRefresh refreshes key only if no refresh is currently in flight. It is
// the scheduler's entry point: an overlapping periodic run is skipped
// entirely, never queued. Returns false when skipped.
func (c *Cache[V]) TryRefresh(ctx context.Context, key string, fetch FetchFunc[V]) bool {
	e := c.entry(key)

	if !e.mu.TryLock() {
		c.logger.Info("refresh already in flight, skipping",
			zap.String("cache", c.name),
			zap.String("key", key))
		return false
	}
	defer e.mu.Unlock()

	c.refreshLocked(ctx, e, key, fetch)
	return true
}

// refreshLocked runs fetch and installs the result; e.mu must be held.
func (c *Cache[V]) refreshLocked(ctx context.Context, e *entry[V], key string, fetch FetchFunc[V]) {
	data, err := fetch(ctx)
	now := c.clock()
	if err != nil {
		metrics.CacheRefreshFailuresTotal.WithLabelValues(c.name).Inc()
		c.logger.Warn("cache refresh failed, serving previous data",
			zap.String("cache", c.name),
			zap.String("key", key),
			zap.Error(err))
		if !e.initialized {
			e.lastRefreshed = now
			e.initialized = true
		}
		return
	}
	e.data = data
	e.lastRefreshed = now
	e.initialized = true
}

// LastRefreshed reports when the key was last stamped; ok is false for a key
// that has never been touched.
func (c *Cache[V]) LastRefreshed(key string) (time.Time, bool) {
	e := c.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRefreshed, e.initialized
}

// SetClock replaces the time source, for tests
func (c *Cache[V]) SetClock(clock func() time.Time) {
	c.clock = clock
}
