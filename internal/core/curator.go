package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"radar/internal/logging"
	"radar/internal/queue"
	"radar/internal/status"
	"radar/internal/storage"
	"radar/internal/types"
)

// DigestWriter turns a batch of results into one digest. previous is the
// summary of the last stored digest, or empty.
type DigestWriter interface {
	Curate(ctx context.Context, results []*types.StructuredResult, previous string) (*types.Digest, error)
}

type CuratorConfig struct {
	Topic     string
	Group     string
	Name      string
	Threshold int
	BatchSize int64
	// Timeout bounds one Curate call, critic rounds included.
	Timeout time.Duration
}

// Curator folds analyzed results into digests, either once Threshold results
// were accepted or when asked to through the trigger.
type Curator struct {
	queue   queue.Queue
	writer  DigestWriter
	digests storage.DigestStore
	trigger *status.Trigger
	audit   *logging.Audit
	config  CuratorConfig
	logger  *slog.Logger

	accumulated atomic.Int64
	mu          sync.Mutex
	onDigest    []func(*types.Digest)
}

func NewCurator(q queue.Queue, writer DigestWriter, digests storage.DigestStore, trigger *status.Trigger, audit *logging.Audit, config CuratorConfig, logger *slog.Logger) *Curator {
	if config.Topic == "" {
		config.Topic = queue.AnalyzedTopic
	}
	if config.Group == "" {
		config.Group = "curator_group"
	}
	if config.Name == "" {
		config.Name = "curator_worker_1"
	}
	if config.Threshold <= 0 {
		config.Threshold = 10
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultStageTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Curator{
		queue:   q,
		writer:  writer,
		digests: digests,
		trigger: trigger,
		audit:   audit,
		config:  config,
		logger:  logger.With("component", "curator"),
	}
}

// OnDigest registers fn to run after each stored digest.
func (c *Curator) OnDigest(fn func(*types.Digest)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDigest = append(c.onDigest, fn)
}

func (c *Curator) Initialize(ctx context.Context) error {
	if err := c.queue.EnsureGroup(ctx, c.config.Topic, c.config.Group); err != nil {
		return fmt.Errorf("failed to initialize curator: %w", err)
	}
	return nil
}

// Observe counts one accepted result and requests a digest once the
// threshold is reached.
func (c *Curator) Observe() {
	if n := c.accumulated.Add(1); n >= int64(c.config.Threshold) {
		if c.trigger.Notify(status.KindCurate) {
			c.logger.Info("Digest threshold reached", "accumulated", n)
		}
	}
}

func (c *Curator) Accumulated() int64 {
	return c.accumulated.Load()
}

// Run curates on every trigger until ctx is done.
func (c *Curator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.trigger.Curations():
			if _, err := c.CurateOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("Digest failed", "error", err)
			}
		}
	}
}

// CurateOnce drafts a digest over every unconsumed analyzed result. The batch
// counts as consumed even when the digest fails.
func (c *Curator) CurateOnce(ctx context.Context) (*types.Digest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.claim(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*types.StructuredResult, 0, len(entries))
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
		r, err := queue.DecodeResult(entry)
		if err != nil {
			c.logger.Warn("Skipping malformed result", "entry_id", entry.ID, "error", err)
			continue
		}
		results = append(results, r)
	}

	previous := ""
	if last, err := c.digests.Latest(ctx); err != nil {
		c.logger.Warn("Failed to load previous digest", "error", err)
	} else if last != nil {
		previous = last.Summary
	}

	digest, err := c.curate(ctx, results, previous)
	if err == nil {
		if err = c.digests.Insert(ctx, digest); err == nil {
			c.logger.Info("Digest stored", "digest_id", digest.ID, "results", len(results), "caveat", digest.Caveat != "")
			c.audit.Event(ctx, slog.LevelInfo, "DIGEST_CREATED", "", "digest_id", digest.ID, "results", len(results))
			for _, fn := range c.onDigest {
				fn(digest)
			}
		}
	}
	if err != nil {
		c.audit.Event(ctx, slog.LevelError, "DIGEST_FAILED", "", "results", len(results), "error", err.Error())
	}

	finishCtx := context.WithoutCancel(ctx)
	if len(ids) > 0 {
		if ackErr := c.queue.Ack(finishCtx, c.config.Topic, c.config.Group, ids...); ackErr != nil {
			c.logger.Error("Failed to ack digest batch", "count", len(ids), "error", ackErr)
		}
	}
	c.accumulated.Store(0)

	if err != nil {
		return nil, fmt.Errorf("digest over %d results: %w", len(results), err)
	}
	return digest, nil
}

func (c *Curator) curate(ctx context.Context, results []*types.StructuredResult, previous string) (*types.Digest, error) {
	curateCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	digest, err := c.writer.Curate(curateCtx, results, previous)
	if err != nil && ctx.Err() == nil && errors.Is(curateCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("digest timed out after %s: %w", c.config.Timeout, err)
	}
	return digest, err
}

func (c *Curator) claim(ctx context.Context) ([]queue.Entry, error) {
	pending, err := c.queue.ReadPending(ctx, c.config.Topic, c.config.Group, c.config.Name, c.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending results: %w", err)
	}

	remaining := c.config.BatchSize - int64(len(pending))
	if remaining <= 0 {
		return pending, nil
	}
	fresh, err := c.queue.ReadNew(ctx, c.config.Topic, c.config.Group, c.config.Name, remaining, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read new results: %w", err)
	}
	return append(pending, fresh...), nil
}
