package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"radar/internal/components"
	"radar/internal/config"
	"radar/internal/core"
	"radar/internal/ledger"
	"radar/internal/logging"
	"radar/internal/processors"
	"radar/internal/processors/names"
	"radar/internal/queue"
	"radar/internal/server/feed"
	"radar/internal/status"
	"radar/internal/storage"
	"radar/internal/types"
)

// agent holds everything a subcommand may need. Fields that depend on an
// unregistered component stay nil.
type agent struct {
	registry    *components.Registry
	rdb         *redis.Client
	store       storage.StorageInterface
	queue       queue.Queue
	statusStore *status.RedisStore
	status      *status.Status
	ledger      *ledger.Ledger
	audit       *logging.Audit
	trigger     *status.Trigger
	llm         processors.LLM
	server      *feed.Server
}

type agentOpts struct {
	storage bool
	llm     bool
	server  bool
}

func newAgent(ctx context.Context, opts agentOpts) (*agent, error) {
	registry := components.NewRegistry(logger)
	comps := []components.IComponent{components.NewRedisComponent(cfg.Redis.URL)}
	if opts.storage || opts.server {
		comps = append(comps, components.NewStorageComponent(cfg.Storage))
	}
	if opts.llm {
		comps = append(comps, components.NewPlatformComponent(cfg.LLM, logger))
	}
	if opts.server {
		comps = append(comps, components.NewServerComponent(registry, feed.Config{
			Name:          cfg.Agent.Name,
			Port:          cfg.Server.Port,
			FeedSize:      cfg.Server.FeedSize,
			PendingTopic:  cfg.Agent.PendingTopic,
			AnalyzedTopic: cfg.Agent.AnalyzedTopic,
		}, logger))
	}
	for _, comp := range comps {
		if err := registry.Register(comp); err != nil {
			return nil, err
		}
	}

	if err := registry.InitializeAll(ctx); err != nil {
		return nil, err
	}

	audit, err := logging.OpenAudit(cfg.Logging.AuditPath, cfg.Agent.Name)
	if err != nil {
		registry.CloseAll(ctx)
		return nil, err
	}

	a := &agent{
		registry: registry,
		rdb:      registry.Get(components.RedisComponentName).(*components.RedisComponent).Client(),
		audit:    audit,
		trigger:  status.NewTrigger(),
	}
	a.queue = queue.NewRedisQueue(a.rdb)
	a.statusStore = status.NewRedisStore(a.rdb)
	a.status = status.New(a.statusStore, logger)

	var ledgerStore ledger.Store = ledger.NewRedisStore(a.rdb)
	if cfg.Ledger.Type == "memory" {
		ledgerStore = ledger.NewMemoryStore(config.Duration(cfg.Ledger.TTL))
	}
	a.ledger = ledger.New(ledgerStore, ledger.Config{
		Prefix: cfg.Ledger.Prefix,
		TTL:    config.Duration(cfg.Ledger.TTL),
	}, logger)

	if registry.Has(components.StorageComponentName) {
		a.store = registry.Get(components.StorageComponentName).(*components.StorageComponent).Store()
	}
	if registry.Has(components.PlatformComponentName) {
		a.llm = registry.Get(components.PlatformComponentName).(*components.PlatformComponent).LLM()
	}
	if registry.Has(components.ServerComponentName) {
		a.server = registry.Get(components.ServerComponentName).(*components.ServerComponent).Server()
	}

	return a, nil
}

func (a *agent) Close(ctx context.Context) {
	a.registry.CloseAll(ctx)
	if err := a.audit.Close(); err != nil {
		logger.Warn("Failed to close audit log", "error", err)
	}
}

// pipeline wires filter -> extract -> critique.
func (a *agent) pipeline() *core.Pipeline {
	extractor := processors.NewExtractProcessor(a.llm, cfg.LLM.MaxAttempts, logger)

	graph := core.NewStageGraph()
	graph.Add(processors.NewFilterProcessor(a.llm, processors.FilterConfig{
		RejectThreshold:     cfg.Filter.RejectThreshold,
		AutoAcceptThreshold: cfg.Filter.AutoAcceptThreshold,
		MinConfidence:       cfg.Filter.MinConfidence,
	}, logger))
	graph.Add(extractor, names.Filter)
	graph.Add(processors.NewCritiqueProcessor(a.llm, extractor, cfg.Critique.MaxRevisions, logger), names.Extract)

	return core.NewPipeline(graph, config.Duration(cfg.LLM.StageTimeout), logger)
}

func (a *agent) curator(ctx context.Context) (*core.Curator, error) {
	curator := core.NewCurator(a.queue,
		processors.NewCurateProcessor(a.llm, cfg.Curator.MaxRevisions, logger),
		a.store.Digests(), a.trigger, a.audit,
		core.CuratorConfig{
			Topic:     cfg.Agent.AnalyzedTopic,
			Group:     cfg.Curator.Group,
			Threshold: cfg.Curator.Threshold,
			Timeout:   config.Duration(cfg.LLM.StageTimeout),
		}, logger)

	if err := curator.Initialize(ctx); err != nil {
		return nil, err
	}
	if a.server != nil {
		curator.OnDigest(func(*types.Digest) { a.server.InvalidateFeeds() })
	}
	return curator, nil
}

// consumer builds the pending-topic consumer. curator may be nil.
func (a *agent) consumer(ctx context.Context, curator *core.Curator) (*core.Consumer, error) {
	consumer := core.NewConsumer(core.ConsumerDeps{
		Queue:      a.queue,
		Ledger:     a.ledger,
		Pipeline:   a.pipeline(),
		Rejections: a.store.Rejections(),
		Status:     a.status,
		Audit:      a.audit,
		Curator:    curator,
		Logger:     logger,
	}, core.ConsumerConfig{
		Topic:          cfg.Agent.PendingTopic,
		AnalyzedTopic:  cfg.Agent.AnalyzedTopic,
		Group:          cfg.Agent.ConsumerGroup,
		Name:           cfg.Agent.ConsumerName,
		AckRetries:     cfg.Agent.AckRetries,
		PersistRetries: cfg.Agent.PersistRetries,
		RetryBackoff:   config.Duration(cfg.Agent.RetryBackoff),
		ErrorBackoff:   config.Duration(cfg.Agent.ErrorBackoff),
	})

	if err := consumer.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize consumer: %w", err)
	}
	return consumer, nil
}
