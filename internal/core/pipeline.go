package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"radar/internal/processors/names"
	"radar/internal/types"
)

const DefaultStageTimeout = 120 * time.Second

// Pipeline runs a document through its stages. Every stage call carries its
// own deadline; a stage that fails or times out rejects the document.
type Pipeline struct {
	graph   *StageGraph
	timeout time.Duration
	logger  *slog.Logger
}

func NewPipeline(graph *StageGraph, stageTimeout time.Duration, logger *slog.Logger) *Pipeline {
	if stageTimeout <= 0 {
		stageTimeout = DefaultStageTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		graph:   graph,
		timeout: stageTimeout,
		logger:  logger.With("component", names.Pipeline),
	}
}

// Run returns the verdict for doc. The error is non-nil only when ctx itself
// is done, in which case no verdict was reached.
func (p *Pipeline) Run(ctx context.Context, doc types.Envelope) (types.Verdict, error) {
	stages, err := p.graph.Resolve()
	if err != nil {
		return types.Verdict{}, fmt.Errorf("invalid pipeline: %w", err)
	}

	job := &types.Job{Doc: doc}
	for _, stage := range stages {
		start := time.Now()
		err := p.runStage(ctx, stage, job)
		if err == nil {
			p.logger.Debug("Stage completed", "id", doc.ID, "stage", stage.Name(), "took", time.Since(start))
			continue
		}

		var rejection *types.RejectionError
		switch {
		case errors.As(err, &rejection):
			p.logger.Info("Document rejected", "id", doc.ID, "stage", rejection.Stage, "reason", rejection.Reason)
			return types.Rejected(rejection), nil
		case ctx.Err() != nil:
			return types.Verdict{}, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			p.logger.Warn("Stage timed out", "id", doc.ID, "stage", stage.Name(), "timeout", p.timeout)
			return types.Rejected(types.NewRejectionError(stage.Name(), doc.ID, "stage timed out").
				WithDetail("timeout", p.timeout.String())), nil
		default:
			p.logger.Warn("Stage failed", "id", doc.ID, "stage", stage.Name(), "error", err)
			return types.Rejected(types.NewRejectionError(stage.Name(), doc.ID, "stage failed").
				WithDetail("error", err.Error())), nil
		}
	}

	if job.Result == nil {
		return types.Rejected(types.NewRejectionError(names.Pipeline, doc.ID, "no result produced")), nil
	}
	if err := job.Result.Validate(); err != nil {
		return types.Rejected(types.NewRejectionError(names.Pipeline, doc.ID, "invalid result").
			WithDetail("error", err.Error())), nil
	}
	return types.Accepted(job.Result), nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Processor, job *types.Job) (err error) {
	stageCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", stage.Name(), r)
		}
	}()

	return stage.Process(stageCtx, job)
}
