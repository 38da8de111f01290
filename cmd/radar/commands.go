package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"radar/internal/config"
	"radar/internal/core"
	"radar/internal/sources"
	"radar/internal/types"
)

const shutdownTimeout = 30 * time.Second

func closeAgent(a *agent) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Close(ctx)
}

func newConsumeCmd() *cobra.Command {
	var onDemand bool

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Analyze pending papers until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newAgent(ctx, agentOpts{storage: true, llm: true, server: cfg.Server.Enabled})
			if err != nil {
				return err
			}
			defer closeAgent(a)

			var curator *core.Curator
			if cfg.Curator.Enabled {
				if curator, err = a.curator(ctx); err != nil {
					return err
				}
			}
			consumer, err := a.consumer(ctx, curator)
			if err != nil {
				return err
			}

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := a.statusStore.Listen(ctx, a.trigger, logger); err != nil {
					logger.Error("Trigger listener stopped", "error", err)
				}
			}()
			if curator != nil {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := curator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("Curator stopped", "error", err)
					}
				}()
			}

			batchSize := int64(cfg.Agent.BatchSize)
			if onDemand {
				logger.Info("Waiting for triggers", "topic", cfg.Agent.PendingTopic)
				err = consumer.RunTriggered(ctx, a.trigger, config.Duration(cfg.Agent.TriggerBlock), batchSize)
			} else {
				logger.Info("Consuming", "topic", cfg.Agent.PendingTopic, "poll_interval", cfg.Agent.PollInterval)
				err = consumer.RunForever(ctx, config.Duration(cfg.Agent.PollInterval), batchSize)
			}
			wg.Wait()

			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&onDemand, "on-demand", false, "Only process batches requested over the trigger channel")
	return cmd
}

func newIngestCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch recent arXiv papers into the pending queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if mode == "" {
				mode = cfg.Ingest.Mode
			}

			var src sources.Source
			switch mode {
			case "api":
				src = sources.NewArxivSource(sources.ArxivConfig{
					BaseURL:    cfg.Ingest.BaseURL,
					Query:      cfg.Ingest.Query,
					MaxResults: cfg.Ingest.MaxResults,
					DaysBack:   cfg.Ingest.DaysBack,
					PageDelay:  config.Duration(cfg.Ingest.PageDelay),
				}, logger)
			case "listing":
				src = sources.NewListingSource(sources.ListingConfig{
					URLs:       cfg.Ingest.ListingURLs,
					MaxResults: cfg.Ingest.MaxResults,
					PageDelay:  config.Duration(cfg.Ingest.PageDelay),
				}, nil, logger)
			default:
				return fmt.Errorf("unsupported ingest mode: %s", mode)
			}

			a, err := newAgent(ctx, agentOpts{})
			if err != nil {
				return err
			}
			defer closeAgent(a)

			// Consumers started later find the stream and their group in place.
			if err := a.queue.EnsureGroup(ctx, cfg.Agent.PendingTopic, cfg.Agent.ConsumerGroup); err != nil {
				return err
			}

			n, err := sources.Ingest(ctx, src, a.queue, cfg.Agent.PendingTopic, a.audit, logger)
			if err != nil {
				return err
			}
			fmt.Printf("Queued %d papers on %s\n", n, cfg.Agent.PendingTopic)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Source to ingest from: api or listing (default from config)")
	return cmd
}

func newTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger [batch|curate]",
		Short: "Ask running consumers to process a batch or draft a digest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			msg := "process_all"
			if len(args) == 1 {
				msg = strings.TrimSpace(args[0])
			}

			a, err := newAgent(ctx, agentOpts{})
			if err != nil {
				return err
			}
			defer closeAgent(a)

			if err := a.statusStore.Publish(ctx, msg); err != nil {
				return err
			}
			fmt.Printf("Published %q\n", msg)
			return nil
		},
	}
}

type statusReport struct {
	State           string     `json:"state"`
	Pending         int64      `json:"pending"`
	Analyzed        int64      `json:"analyzed"`
	Rejections      int        `json:"rejections"`
	LastDocID       string     `json:"last_doc_id,omitempty"`
	LastProcessedAt *time.Time `json:"last_processed_at,omitempty"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print agent state and queue depth as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newAgent(ctx, agentOpts{storage: true})
			if err != nil {
				return err
			}
			defer closeAgent(a)

			report := statusReport{State: string(a.status.Current(ctx))}
			if report.Pending, err = a.queue.Len(ctx, cfg.Agent.PendingTopic); err != nil {
				return err
			}
			if report.Analyzed, err = a.queue.Len(ctx, cfg.Agent.AnalyzedTopic); err != nil {
				return err
			}
			if report.Rejections, err = a.store.Rejections().Count(ctx); err != nil {
				return err
			}
			if progress, err := a.status.LastProcessed(ctx); err == nil && progress.DocID != "" {
				report.LastDocID = progress.DocID
				report.LastProcessedAt = &progress.At
			}

			return printJSON(report)
		},
	}
}

func newCurateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "curate",
		Short: "Draft one digest from every unconsumed analyzed result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newAgent(ctx, agentOpts{storage: true, llm: true})
			if err != nil {
				return err
			}
			defer closeAgent(a)

			curator, err := a.curator(ctx)
			if err != nil {
				return err
			}
			digest, err := curator.CurateOnce(ctx)
			if err != nil {
				return err
			}
			return printJSON(digest)
		},
	}
}

func newResetCmd() *cobra.Command {
	var (
		id         string
		title      string
		dropQueues bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget processed markers so papers can be analyzed again",
		Long: `Without flags, reset removes every processed marker. With --id or --title
only that paper is forgotten. --drop-queues also deletes both streams and
recreates the consumer groups.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			skipLedger, err := resetLedgerScope(cfg.Ledger.Type, dropQueues)
			if err != nil {
				return err
			}

			a, err := newAgent(ctx, agentOpts{})
			if err != nil {
				return err
			}
			defer closeAgent(a)

			switch {
			case skipLedger:
				logger.Warn("Ledger is in process memory, only the queues are reset")
			case id != "" || title != "":
				if err := a.ledger.Forget(ctx, types.Envelope{ID: id, Title: title}); err != nil {
					return err
				}
				fmt.Println("Forgot paper")
			default:
				n, err := a.ledger.Reset(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Removed %d processed markers\n", n)
			}

			if !dropQueues {
				return nil
			}
			if err := a.queue.Drop(ctx, cfg.Agent.PendingTopic, cfg.Agent.AnalyzedTopic); err != nil {
				return err
			}
			if err := a.queue.EnsureGroup(ctx, cfg.Agent.PendingTopic, cfg.Agent.ConsumerGroup); err != nil {
				return err
			}
			if err := a.queue.EnsureGroup(ctx, cfg.Agent.AnalyzedTopic, cfg.Curator.Group); err != nil {
				return err
			}
			fmt.Println("Dropped and recreated queues")
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Forget one paper by id")
	cmd.Flags().StringVar(&title, "title", "", "Forget one paper by title")
	cmd.Flags().BoolVar(&dropQueues, "drop-queues", false, "Also delete and recreate the streams")
	return cmd
}

// resetLedgerScope reports whether reset must leave the ledger alone. A memory
// ledger lives inside the consuming process, out of reach of this command.
func resetLedgerScope(ledgerType string, dropQueues bool) (skipLedger bool, err error) {
	if ledgerType != "memory" {
		return false, nil
	}
	if !dropQueues {
		return false, fmt.Errorf("ledger type is memory: processed markers live in the consumer process, restart it to clear them")
	}
	return true, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
