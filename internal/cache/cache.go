package cache

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a typed wrapper over go-cache with per-entry expiry.
type Cache[V any] struct {
	cache *gocache.Cache
	mu    sync.RWMutex
}

type CacheConfig struct {
	TTL time.Duration
}

func NewCache[V any](config CacheConfig) *Cache[V] {
	if config.TTL == 0 {
		config.TTL = 1 * time.Hour
	}

	slog.Debug("Cache initialized", "ttl", config.TTL)
	return &Cache[V]{
		cache: gocache.New(config.TTL, config.TTL/2),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, found := c.cache.Get(key)
	if !found {
		var zero V
		return zero, false
	}

	if typedValue, ok := value.(V); ok {
		return typedValue, true
	}

	var zero V
	return zero, false
}

func (c *Cache[V]) Has(key string) bool {
	_, found := c.Get(key)
	return found
}

func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, value, ttl)
}

func (c *Cache[V]) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		c.cache.Delete(key)
	}
}

func (c *Cache[V]) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
			removed++
		}
	}
	slog.Debug("Cache invalidated prefix", "prefix", prefix, "removed", removed)
	return removed
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.ItemCount()
}
