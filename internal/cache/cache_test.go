package cache_test

import (
	"testing"
	"time"

	"radar/internal/cache"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGetExpire(t *testing.T) {
	c := cache.NewCache[string](cache.CacheConfig{TTL: time.Minute})

	c.SetWithTTL("a", "1", 20*time.Millisecond)
	c.SetWithTTL("b", "2", 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	time.Sleep(40 * time.Millisecond)
	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := cache.NewCache[bool](cache.CacheConfig{})
	c.SetWithTTL("processed:1", true, 0)
	c.SetWithTTL("processed:fp:abc", true, 0)
	c.SetWithTTL("other", true, 0)

	assert.Equal(t, 2, c.InvalidatePrefix("processed:"))
	assert.Equal(t, 1, c.Len())

	c.Invalidate("other")
	assert.Zero(t, c.Len())
}
