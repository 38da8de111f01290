package processors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"radar/internal/processors/names"
	"radar/internal/types"
)

const (
	quietHeadline = "Quiet Day on the AI Front"
	quietSummary  = "No new significant threats detected."
)

// CurateProcessor drafts a digest over a batch of results and runs it past a
// critic a bounded number of times.
type CurateProcessor struct {
	llm          LLM
	maxRevisions int
	logger       *slog.Logger
}

func NewCurateProcessor(llm LLM, maxRevisions int, logger *slog.Logger) *CurateProcessor {
	if maxRevisions < 0 {
		maxRevisions = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CurateProcessor{
		llm:          llm,
		maxRevisions: maxRevisions,
		logger:       logger.With("processor", names.Curate),
	}
}

func (c *CurateProcessor) Name() string {
	return names.Curate
}

type digestDraft struct {
	Headline    string   `json:"headline"`
	Summary     string   `json:"summary_markdown"`
	Highlighted []string `json:"highlighted_threat_ids"`
}

// Curate returns a digest for results. Once a first draft exists, critic or
// revision failures never fail the digest; the last draft ships with a caveat.
func (c *CurateProcessor) Curate(ctx context.Context, results []*types.StructuredResult, previous string) (*types.Digest, error) {
	digest := &types.Digest{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		ResultIDs: make([]string, 0, len(results)),
	}
	for _, r := range results {
		digest.ResultIDs = append(digest.ResultIDs, r.ID)
	}

	if len(results) == 0 {
		digest.Headline = quietHeadline
		digest.Summary = quietSummary
		return digest, nil
	}

	listing := formatResults(results)
	if previous == "" {
		previous = "(none)"
	}

	draft, err := c.draft(ctx, fmt.Sprintf(curatePrompt, previous, listing))
	if err != nil {
		return nil, fmt.Errorf("failed to draft digest: %w", err)
	}

	review := func(ctx context.Context, d digestDraft) (Review, error) {
		return c.review(ctx, listing, d)
	}
	revise := func(ctx context.Context, d digestDraft, feedback string) (digestDraft, error) {
		c.logger.Info("Revising digest", "feedback", feedback)
		prompt := fmt.Sprintf(curatePrompt, previous, listing) + fmt.Sprintf(curateReviseSuffix, feedback, d.Summary)
		return c.draft(ctx, prompt)
	}

	final, verdict, err := reviseLoop(ctx, draft, c.maxRevisions, review, revise)
	switch {
	case err != nil:
		c.logger.Warn("Digest review failed, keeping last draft", "error", err)
		digest.Caveat = "review incomplete: " + err.Error()
	case !verdict.Approved:
		c.logger.Info("Digest revisions exhausted, publishing last draft")
		digest.Caveat = "approved with caveat: " + verdict.Feedback
	}

	digest.Headline = final.Headline
	digest.Summary = final.Summary
	digest.Highlighted = final.Highlighted
	return digest, nil
}

func (c *CurateProcessor) draft(ctx context.Context, prompt string) (digestDraft, error) {
	var d digestDraft
	reply, err := c.llm.Generate(ctx, curateSystem, prompt)
	if err != nil {
		return d, err
	}
	if err := decodeJSON(reply, &d); err != nil {
		return d, err
	}
	if strings.TrimSpace(d.Headline) == "" || strings.TrimSpace(d.Summary) == "" {
		return d, fmt.Errorf("digest draft missing headline or summary")
	}
	return d, nil
}

func (c *CurateProcessor) review(ctx context.Context, listing string, d digestDraft) (Review, error) {
	reply, err := c.llm.Generate(ctx, critiqueSystem, fmt.Sprintf(digestCritiquePrompt, listing, d.Headline, d.Summary))
	if err != nil {
		return Review{}, err
	}
	var verdict Review
	if err := decodeJSON(reply, &verdict); err != nil {
		return Review{}, err
	}
	return verdict, nil
}

func formatResults(results []*types.StructuredResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "- [%s] [%d/5] %s: %s (%s)\n", r.ID, r.Severity, r.Title, r.SummaryTLDR, r.AttackType)
	}
	return b.String()
}
