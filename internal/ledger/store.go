package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"radar/internal/cache"
)

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	return s.rdb.Exists(ctx, keys...).Result()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int, error) {
	n, err := s.rdb.Del(ctx, keys...).Result()
	return int(n), err
}

func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan %s*: %w", prefix, err)
	}

	removed := 0
	for start := 0; start < len(keys); start += 500 {
		end := start + 500
		if end > len(keys) {
			end = len(keys)
		}
		n, err := s.rdb.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to delete markers: %w", err)
		}
		removed += int(n)
	}
	return removed, nil
}

// MemoryStore keeps markers in process memory. Markers do not survive a
// restart, so it only suits single-process runs.
type MemoryStore struct {
	markers *cache.Cache[string]
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		markers: cache.NewCache[string](cache.CacheConfig{TTL: ttl}),
	}
}

func (s *MemoryStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	for _, key := range keys {
		if s.markers.Has(key) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	val, _ := s.markers.Get(key)
	return val, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.markers.SetWithTTL(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) (int, error) {
	n := 0
	for _, key := range keys {
		if s.markers.Has(key) {
			n++
		}
	}
	s.markers.Invalidate(keys...)
	return n, nil
}

func (s *MemoryStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	return s.markers.InvalidatePrefix(prefix), nil
}
