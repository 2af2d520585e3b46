// Package refcache provides a small TTL cache for externally-fetched
// reference data. Reads never surface backend or decode failures: an
// expired, corrupt, or unreachable entry degrades to a miss, and stale
// entries are purged on the read that discovers them.
package refcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wardbook/portalsync/internal/observability/metrics"
	"github.com/wardbook/portalsync/pkg/logging"
)

// DefaultTTL is the validity window applied when no TTL is configured.
const DefaultTTL = 30 * time.Minute

type envelope[T any] struct {
	Value    T         `json:"v"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache is a typed view over a Backend. The envelope's cached_at timestamp is
// authoritative for expiry; the backend TTL only bounds storage growth.
type Cache[T any] struct {
	backend Backend
	ttl     time.Duration
	logger  *logging.Logger
	metrics *metrics.SyncMetrics
	now     func() time.Time
}

// New creates a cache over backend. A non-positive ttl falls back to DefaultTTL.
func New[T any](backend Backend, ttl time.Duration, m *metrics.SyncMetrics, logger *logging.Logger) *Cache[T] {
	if backend == nil {
		panic("refcache: backend cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[T]{
		backend: backend,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Get returns the cached value for key if one exists and is still within its
// TTL. Expired and corrupt entries are purged as a side effect.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("refcache: backend read failed, treating as miss", "key", key, "error", err)
		c.metrics.ObserveCacheOp("error")
		return zero, false
	}
	if !ok {
		c.metrics.ObserveCacheOp("miss")
		return zero, false
	}

	var e envelope[T]
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("refcache: corrupt entry purged", "key", key, "error", err)
		c.purge(ctx, key)
		c.metrics.ObserveCacheOp("corrupt")
		return zero, false
	}
	if e.CachedAt.IsZero() {
		// An envelope without a timestamp cannot be aged; treat as corrupt.
		c.purge(ctx, key)
		c.metrics.ObserveCacheOp("corrupt")
		return zero, false
	}

	if c.now().Sub(e.CachedAt) >= c.ttl {
		c.purge(ctx, key)
		c.metrics.ObserveCacheOp("expired")
		return zero, false
	}

	c.metrics.ObserveCacheOp("hit")
	return e.Value, true
}

// Set stores value under key with the current timestamp, overwriting any
// prior entry unconditionally.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) {
	data, err := json.Marshal(envelope[T]{Value: value, CachedAt: c.now().UTC()})
	if err != nil {
		c.logger.Warn("refcache: marshal failed, entry not cached", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("refcache: backend write failed", "key", key, "error", err)
	}
}

// Clear removes the entry regardless of age. Used on session termination.
func (c *Cache[T]) Clear(ctx context.Context, key string) {
	c.purge(ctx, key)
}

func (c *Cache[T]) purge(ctx context.Context, key string) {
	if err := c.backend.Delete(ctx, key); err != nil {
		c.logger.Warn("refcache: purge failed", "key", key, "error", err)
	}
}
