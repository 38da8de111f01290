package feed

import (
	"fmt"

	"radar/internal/cache"
)

const (
	TypeRSS  = "rss"
	TypeAtom = "atom"
	TypeJSON = "json"
)

type CacheKey struct {
	Type  string
	Limit int
}

func NewCacheKey(feedType string, limit int) CacheKey {
	return CacheKey{Type: feedType, Limit: limit}
}

func (k CacheKey) String() string {
	return fmt.Sprintf("digest:%s:%d", k.Type, k.Limit)
}

// NewCache holds rendered feed documents until a new digest lands or the TTL
// passes.
func NewCache(config cache.CacheConfig) *cache.Cache[string] {
	return cache.NewCache[string](config)
}
