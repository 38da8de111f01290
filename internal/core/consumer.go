package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"radar/internal/ledger"
	"radar/internal/logging"
	"radar/internal/queue"
	"radar/internal/status"
	"radar/internal/storage"
	"radar/internal/types"
)

type ConsumerConfig struct {
	Topic          string
	AnalyzedTopic  string
	Group          string
	Name           string
	AckRetries     int
	PersistRetries int
	RetryBackoff   time.Duration
	ErrorBackoff   time.Duration
}

type ConsumerDeps struct {
	Queue      queue.Queue
	Ledger     *ledger.Ledger
	Pipeline   *Pipeline
	Rejections storage.RejectionStore
	Status     *status.Status
	Audit      *logging.Audit
	// Curator is optional; when set it is told about every accepted result.
	Curator *Curator
	Logger  *slog.Logger
}

// Consumer drains the pending topic. Every claimed entry goes through
// HandleEntry, whichever path claimed it.
type Consumer struct {
	queue      queue.Queue
	ledger     *ledger.Ledger
	pipeline   *Pipeline
	rejections storage.RejectionStore
	status     *status.Status
	audit      *logging.Audit
	curator    *Curator
	config     ConsumerConfig
	logger     *slog.Logger

	// one batch at a time, whether polled or triggered
	batchMu sync.Mutex
}

type BatchStats struct {
	Claimed   int
	Recovered bool
	Outcomes  map[types.Outcome]int
}

func NewConsumer(deps ConsumerDeps, config ConsumerConfig) *Consumer {
	if config.Topic == "" {
		config.Topic = queue.PendingTopic
	}
	if config.AnalyzedTopic == "" {
		config.AnalyzedTopic = queue.AnalyzedTopic
	}
	if config.Group == "" {
		config.Group = "agent_group"
	}
	if config.Name == "" {
		config.Name = "agent_worker_1"
	}
	if config.AckRetries <= 0 {
		config.AckRetries = 3
	}
	if config.PersistRetries <= 0 {
		config.PersistRetries = 3
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Second
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = 5 * time.Second
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		queue:      deps.Queue,
		ledger:     deps.Ledger,
		pipeline:   deps.Pipeline,
		rejections: deps.Rejections,
		status:     deps.Status,
		audit:      deps.Audit,
		curator:    deps.Curator,
		config:     config,
		logger:     logger.With("consumer", config.Name, "group", config.Group),
	}
}

func (c *Consumer) Initialize(ctx context.Context) error {
	if err := c.queue.EnsureGroup(ctx, c.config.Topic, c.config.Group); err != nil {
		return fmt.Errorf("failed to initialize consumer: %w", err)
	}
	return nil
}

// RunForever polls until ctx is done. Entries left pending by an earlier run
// are finished before any new entry is claimed.
func (c *Consumer) RunForever(ctx context.Context, pollInterval time.Duration, batchSize int64) error {
	c.logger.Info("Consumer started", "topic", c.config.Topic, "poll_interval", pollInterval, "batch_size", batchSize)
	defer c.logger.Info("Consumer stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stats, err := c.RunBatch(ctx, pollInterval, batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("Batch failed", "error", err, "backoff", c.config.ErrorBackoff)
			if err := sleepCtx(ctx, c.config.ErrorBackoff); err != nil {
				return err
			}
			continue
		}

		// every entry was deferred; the same entries come back as pending next
		if stats.Claimed > 0 && stats.Outcomes[types.OutcomeDeferred] == stats.Claimed {
			if err := sleepCtx(ctx, c.config.ErrorBackoff); err != nil {
				return err
			}
		}
	}
}

// RunTriggered runs one batch per trigger until ctx is done. Triggers that
// arrive while a batch runs collapse into a single follow-up batch.
func (c *Consumer) RunTriggered(ctx context.Context, trigger *status.Trigger, block time.Duration, batchSize int64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-trigger.Batches():
			stats, err := c.RunBatch(ctx, block, batchSize)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("Triggered batch failed", "error", err)
				continue
			}
			c.logger.Info("Triggered batch finished", "claimed", stats.Claimed, "outcomes", stats.Outcomes)
		}
	}
}

// RunBatch claims up to batchSize entries and handles each. The status flag
// reads working for the whole of a non-empty batch and idle afterwards.
func (c *Consumer) RunBatch(ctx context.Context, block time.Duration, batchSize int64) (BatchStats, error) {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()

	stats := BatchStats{Outcomes: make(map[types.Outcome]int)}

	entries, recovered, err := c.claim(ctx, block, batchSize)
	if err != nil {
		return stats, err
	}
	if len(entries) == 0 {
		return stats, nil
	}
	stats.Claimed = len(entries)
	stats.Recovered = recovered

	release := c.status.Begin(ctx)
	defer release()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		outcome, err := c.HandleEntry(ctx, entry)
		stats.Outcomes[outcome]++
		if err != nil {
			return stats, err
		}
	}

	c.logger.Info("Batch finished", "claimed", stats.Claimed, "recovered", recovered, "outcomes", stats.Outcomes)
	return stats, nil
}

func (c *Consumer) claim(ctx context.Context, block time.Duration, batchSize int64) ([]queue.Entry, bool, error) {
	pending, err := c.queue.ReadPending(ctx, c.config.Topic, c.config.Group, c.config.Name, batchSize)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read pending entries: %w", err)
	}
	if len(pending) > 0 {
		c.logger.Info("Recovering unacknowledged entries", "count", len(pending))
		return pending, true, nil
	}

	entries, err := c.queue.ReadNew(ctx, c.config.Topic, c.config.Group, c.config.Name, batchSize, block)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read new entries: %w", err)
	}
	return entries, false, nil
}

// HandleEntry takes one entry to a terminal state and acknowledges it. The
// entry stays pending only when its outcome could not be persisted or when
// ctx ends before a verdict; the error is non-nil only in the latter case.
func (c *Consumer) HandleEntry(ctx context.Context, entry queue.Entry) (types.Outcome, error) {
	// once a verdict exists, finish the entry even if shutdown begins
	finishCtx := context.WithoutCancel(ctx)

	doc, err := queue.Decode(entry)
	if err != nil {
		c.logger.Warn("Dropping malformed entry", "entry_id", entry.ID, "error", err)
		c.audit.Event(ctx, slog.LevelWarn, "POISON_PILL", "", "entry_id", entry.ID, "error", err.Error())
		c.ack(finishCtx, entry.ID)
		return types.OutcomePoison, nil
	}

	logger := c.logger.With("entry_id", entry.ID, "id", doc.ID)
	c.audit.Event(ctx, slog.LevelInfo, "JOB_RECEIVED", doc.Title+"\n"+doc.Body,
		"doc_id", doc.ID, "entry_id", entry.ID, "source", doc.Source)

	if c.ledger.IsDuplicate(ctx, doc) {
		logger.Info("Duplicate skipped")
		c.ack(finishCtx, entry.ID)
		return types.OutcomeDuplicate, nil
	}

	verdict, err := c.pipeline.Run(ctx, doc)
	if err != nil {
		logger.Info("Shutdown before verdict, entry stays pending")
		return types.OutcomeDeferred, err
	}

	if err := c.persist(finishCtx, doc, verdict); err != nil {
		logger.Error("Persist failed, entry stays pending", "error", err)
		c.audit.Event(ctx, slog.LevelError, "JOB_ERROR", "", "doc_id", doc.ID, "entry_id", entry.ID, "error", err.Error())
		return types.OutcomeDeferred, nil
	}

	if err := c.ledger.MarkProcessed(finishCtx, doc); err != nil {
		logger.Warn("Failed to mark document processed", "error", err)
	}
	c.status.Processed(finishCtx, doc.ID)
	c.ack(finishCtx, entry.ID)

	if verdict.IsAccepted() {
		if c.curator != nil {
			c.curator.Observe()
		}
		return types.OutcomeAccepted, nil
	}
	return types.OutcomeRejected, nil
}

func (c *Consumer) persist(ctx context.Context, doc types.Envelope, verdict types.Verdict) error {
	if verdict.IsAccepted() {
		result := verdict.Result
		values, err := queue.EncodeResult(result)
		if err != nil {
			return err
		}
		err = withRetry(ctx, c.logger, "append result", c.config.PersistRetries, c.config.RetryBackoff, func(ctx context.Context) error {
			_, err := c.queue.Append(ctx, c.config.AnalyzedTopic, values)
			return err
		})
		if err != nil {
			return err
		}

		c.logger.Info("Threat signature stored", "id", doc.ID,
			"attack_type", result.AttackType, "severity", result.Severity, "caveat", result.Caveat != "")
		c.audit.Event(ctx, slog.LevelInfo, "THREAT_DETECTED", "", "doc_id", doc.ID,
			"attack_type", string(result.AttackType), "severity", result.Severity, "relevance", result.RelevanceScore)
		return nil
	}

	rejection := verdict.Rejection
	if rejection == nil {
		return errors.New("verdict has neither result nor rejection")
	}
	record := types.Rejection{
		DocID:      doc.ID,
		Title:      doc.Title,
		Stage:      rejection.Stage,
		Reason:     rejection.Reason,
		Details:    rejection.Details,
		RejectedAt: time.Now().UTC(),
	}
	return withRetry(ctx, c.logger, "record rejection", c.config.PersistRetries, c.config.RetryBackoff, func(ctx context.Context) error {
		return c.rejections.Record(ctx, record)
	})
}

func (c *Consumer) ack(ctx context.Context, entryID string) {
	err := withRetry(ctx, c.logger, "ack", c.config.AckRetries, c.config.RetryBackoff, func(ctx context.Context) error {
		return c.queue.Ack(ctx, c.config.Topic, c.config.Group, entryID)
	})
	if err != nil {
		c.logger.Error("Giving up on ack, entry will be redelivered after restart", "entry_id", entryID, "error", err)
		c.audit.Event(ctx, slog.LevelError, "ACK_FAILED", "", "entry_id", entryID, "error", err.Error())
	}
}
