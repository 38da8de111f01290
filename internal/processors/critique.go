package processors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"radar/internal/processors/names"
	"radar/internal/types"
)

var errRevisionFailed = errors.New("revision failed")

type CritiqueProcessor struct {
	llm          LLM
	extractor    *ExtractProcessor
	maxRevisions int
	logger       *slog.Logger
}

// NewCritiqueProcessor checks each extraction against its source text. A
// rejected extraction is redone through extractor with the critic's feedback.
func NewCritiqueProcessor(llm LLM, extractor *ExtractProcessor, maxRevisions int, logger *slog.Logger) *CritiqueProcessor {
	if maxRevisions < 0 {
		maxRevisions = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CritiqueProcessor{
		llm:          llm,
		extractor:    extractor,
		maxRevisions: maxRevisions,
		logger:       logger.With("processor", names.Critique),
	}
}

func (c *CritiqueProcessor) Name() string {
	return names.Critique
}

func (c *CritiqueProcessor) Process(ctx context.Context, job *types.Job) error {
	if job.Result == nil {
		return types.NewRejectionError(names.Critique, job.Doc.ID, "nothing to critique")
	}

	review := func(ctx context.Context, r *types.StructuredResult) (Review, error) {
		return c.review(ctx, job.Doc, r)
	}
	revise := func(ctx context.Context, _ *types.StructuredResult, feedback string) (*types.StructuredResult, error) {
		c.logger.Info("Revising extraction", "id", job.Doc.ID, "feedback", feedback)
		r, err := c.extractor.extract(ctx, job, feedback)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", errRevisionFailed, err)
		}
		return r, nil
	}

	final, verdict, err := reviseLoop(ctx, job.Result, c.maxRevisions, review, revise)
	switch {
	case errors.Is(err, errRevisionFailed):
		c.logger.Warn("Revision failed, keeping previous draft", "id", job.Doc.ID, "error", err)
		final.Caveat = "critique feedback not addressed: " + verdict.Feedback
	case err != nil:
		return err
	case !verdict.Approved:
		c.logger.Info("Revisions exhausted, approving with caveat", "id", job.Doc.ID)
		final.Caveat = "not approved after revision: " + verdict.Feedback
	default:
		c.logger.Info("Extraction approved", "id", job.Doc.ID, "score", verdict.Score)
	}

	job.Result = final
	return nil
}

func (c *CritiqueProcessor) review(ctx context.Context, doc types.Envelope, r *types.StructuredResult) (Review, error) {
	extraction, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return Review{}, fmt.Errorf("failed to encode extraction: %w", err)
	}

	prompt := fmt.Sprintf(critiquePrompt, doc.Title, truncate(doc.Body, maxContentRunes), extraction)
	reply, err := c.llm.Generate(ctx, critiqueSystem, prompt)
	if err != nil {
		return Review{}, fmt.Errorf("critique call failed: %w", err)
	}

	var verdict Review
	if err := decodeJSON(reply, &verdict); err != nil {
		return Review{}, fmt.Errorf("critique reply: %w", err)
	}
	return verdict, nil
}
