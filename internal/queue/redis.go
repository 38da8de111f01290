package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisQueue struct {
	rdb *redis.Client
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func (q *RedisQueue) EnsureGroup(ctx context.Context, topic, group string) error {
	err := q.rdb.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create group %s on %s: %w", group, topic, err)
	}
	return nil
}

func (q *RedisQueue) Append(ctx context.Context, topic string, values map[string]interface{}) (string, error) {
	id, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append to %s: %w", topic, err)
	}
	return id, nil
}

func (q *RedisQueue) ReadNew(ctx context.Context, topic, group, consumer string, count int64, block time.Duration) ([]Entry, error) {
	if block <= 0 {
		// a zero Block means "wait forever" to go-redis; negative omits BLOCK
		block = -1
	}
	return q.read(ctx, topic, group, consumer, ">", count, block)
}

func (q *RedisQueue) ReadPending(ctx context.Context, topic, group, consumer string, count int64) ([]Entry, error) {
	return q.read(ctx, topic, group, consumer, "0", count, -1)
}

func (q *RedisQueue) read(ctx context.Context, topic, group, consumer, start string, count int64, block time.Duration) ([]Entry, error) {
	streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{topic, start},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", start, topic, err)
	}

	var entries []Entry
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			entries = append(entries, Entry{ID: msg.ID, Values: msg.Values})
		}
	}
	return entries, nil
}

func (q *RedisQueue) Ack(ctx context.Context, topic, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := q.rdb.XAck(ctx, topic, group, ids...).Err(); err != nil {
		return fmt.Errorf("failed to ack %v on %s: %w", ids, topic, err)
	}
	return nil
}

func (q *RedisQueue) Len(ctx context.Context, topic string) (int64, error) {
	n, err := q.rdb.XLen(ctx, topic).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read length of %s: %w", topic, err)
	}
	return n, nil
}

func (q *RedisQueue) Drop(ctx context.Context, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	if err := q.rdb.Del(ctx, topics...).Err(); err != nil {
		return fmt.Errorf("failed to drop %v: %w", topics, err)
	}
	return nil
}
