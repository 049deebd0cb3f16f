package crm

import (
	"context"
	"time"

	"case-gateway/internal/common/cache"
	"case-gateway/internal/common/logging"
)

// cacheKey is the single fixed key for the whole case set. The provider
// cannot filter, sort, or paginate server-side, so the universal set is
// always fetched and cached whole; partial caching would buy nothing.
const cacheKey = "crm:cases:all"

// DefaultCacheTTL bounds how stale a cached case set may get.
const DefaultCacheTTL = 300 * time.Second

// ResponseCache is a time-boxed cache of the flattened case set. It holds
// the set under one fixed key and is invalidated whole on any write. A
// failed fetch never populates it.
type ResponseCache struct {
	backend cache.Cache
	ttl     time.Duration
	logger  logging.Logger
}

// NewResponseCache creates a response cache over the given backend. A zero
// ttl falls back to DefaultCacheTTL.
func NewResponseCache(backend cache.Cache, ttl time.Duration, logger logging.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &ResponseCache{backend: backend, ttl: ttl, logger: logger}
}

// Get returns the cached case set, nil when absent or expired.
func (c *ResponseCache) Get(ctx context.Context) *RecordSet {
	value, found := c.backend.Get(ctx, cacheKey)
	if !found {
		return nil
	}
	set, ok := value.(*RecordSet)
	if !ok {
		c.logger.Warn("Unexpected cache entry type, discarding",
			logging.Field{Key: "key", Value: cacheKey})
		c.backend.Delete(ctx, cacheKey)
		return nil
	}
	return set
}

// Set stores the case set under the fixed key with the configured TTL.
func (c *ResponseCache) Set(ctx context.Context, set *RecordSet) {
	if err := c.backend.Set(ctx, cacheKey, set, c.ttl); err != nil {
		c.logger.Warn("Failed to cache case set",
			logging.Field{Key: "key", Value: cacheKey},
			logging.Field{Key: "error", Value: err.Error()})
	}
}

// Invalidate drops the cached case set. Called after every write so the
// next read re-fetches.
func (c *ResponseCache) Invalidate(ctx context.Context) {
	if err := c.backend.Delete(ctx, cacheKey); err != nil {
		c.logger.Warn("Failed to invalidate response cache",
			logging.Field{Key: "key", Value: cacheKey},
			logging.Field{Key: "error", Value: err.Error()})
		return
	}
	c.logger.Debug("Response cache invalidated", logging.Field{Key: "key", Value: cacheKey})
}
