package components

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type RedisComponent struct {
	url    string
	client *redis.Client
}

func NewRedisComponent(url string) *RedisComponent {
	return &RedisComponent{url: url}
}

func (c *RedisComponent) Name() string {
	return RedisComponentName
}

func (c *RedisComponent) Dependencies() []string {
	return []string{}
}

func (c *RedisComponent) Validate() error {
	if c.url == "" {
		return fmt.Errorf("redis: url is required")
	}
	if _, err := redis.ParseURL(c.url); err != nil {
		return fmt.Errorf("redis: invalid url: %w", err)
	}
	return nil
}

func (c *RedisComponent) Initialize(ctx context.Context) error {
	opts, err := redis.ParseURL(c.url)
	if err != nil {
		return fmt.Errorf("redis: invalid url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("redis: ping %s failed: %w", opts.Addr, err)
	}

	c.client = client
	return nil
}

func (c *RedisComponent) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *RedisComponent) Client() *redis.Client {
	return c.client
}
