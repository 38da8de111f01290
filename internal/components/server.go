package components

import (
	"context"
	"fmt"
	"log/slog"

	"radar/internal/queue"
	"radar/internal/server/feed"
	"radar/internal/status"
)

type ServerComponent struct {
	registry *Registry
	config   feed.Config
	logger   *slog.Logger
	server   *feed.Server
}

// NewServerComponent serves the status and digest endpoints. It reads Redis
// and storage from registry once those are up.
func NewServerComponent(registry *Registry, config feed.Config, logger *slog.Logger) *ServerComponent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerComponent{
		registry: registry,
		config:   config,
		logger:   logger,
	}
}

func (c *ServerComponent) Name() string {
	return ServerComponentName
}

func (c *ServerComponent) Dependencies() []string {
	return []string{RedisComponentName, StorageComponentName}
}

func (c *ServerComponent) Validate() error {
	if c.config.Port == "" {
		return fmt.Errorf("server: port is required")
	}
	return nil
}

func (c *ServerComponent) Initialize(ctx context.Context) error {
	rdb := c.registry.Get(RedisComponentName).(*RedisComponent).Client()
	store := c.registry.Get(StorageComponentName).(*StorageComponent).Store()
	statusStore := status.NewRedisStore(rdb)

	server := feed.New(c.config, feed.Deps{
		Status:     status.New(statusStore, c.logger),
		Queue:      queue.NewRedisQueue(rdb),
		Rejections: store.Rejections(),
		Digests:    store.Digests(),
		Publisher:  statusStore,
		Logger:     c.logger,
	})

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	c.server = server
	return nil
}

func (c *ServerComponent) Close(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

func (c *ServerComponent) Server() *feed.Server {
	return c.server
}
