package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache defines the interface for cache operations
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
}

// LocalCache wraps patrickmn/go-cache for in-memory caching
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a new local cache instance
func NewLocalCache(defaultTTL, cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a value from the local cache
func (l *LocalCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return l.cache.Get(key)
}

// Set stores a value in the local cache
func (l *LocalCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	l.cache.Set(key, value, ttl)
	return nil
}

// Delete removes a value from the local cache
func (l *LocalCache) Delete(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// Clear removes all items from the local cache
func (l *LocalCache) Clear(ctx context.Context) error {
	l.cache.Flush()
	return nil
}

// Exists checks if a key exists
func (l *LocalCache) Exists(ctx context.Context, key string) (bool, error) {
	_, found := l.cache.Get(key)
	return found, nil
}
