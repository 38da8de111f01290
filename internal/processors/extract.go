package processors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"radar/internal/processors/names"
	"radar/internal/types"
)

const maxContentRunes = 8000

type ExtractProcessor struct {
	llm         LLM
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

func NewExtractProcessor(llm LLM, maxAttempts int, logger *slog.Logger) *ExtractProcessor {
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ExtractProcessor{
		llm:         llm,
		maxAttempts: maxAttempts,
		logger:      logger.With("processor", names.Extract),
		now:         time.Now,
	}
}

func (e *ExtractProcessor) Name() string {
	return names.Extract
}

type extractReply struct {
	AttackType     looseString  `json:"attack_type"`
	Modality       looseStrings `json:"modality"`
	AffectedModels looseStrings `json:"affected_models"`
	IsTheoretical  bool         `json:"is_theoretical"`
	Severity       looseString  `json:"severity"`
	SummaryTLDR    string       `json:"summary_tldr"`
	URL            string       `json:"url"`
}

func (e *ExtractProcessor) Process(ctx context.Context, job *types.Job) error {
	if strings.TrimSpace(job.Doc.Body) == "" {
		return types.NewRejectionError(names.Extract, job.Doc.ID, "empty body")
	}

	result, err := e.extract(ctx, job, "")
	if err != nil {
		return err
	}
	job.Result = result
	return nil
}

// extract asks the model for a signature up to maxAttempts times, feeding the
// validation error of each failed attempt into the next prompt.
func (e *ExtractProcessor) extract(ctx context.Context, job *types.Job, feedback string) (*types.StructuredResult, error) {
	doc := job.Doc
	base := fmt.Sprintf(extractPrompt, doc.ID, doc.URL, doc.PublishedAt, truncate(doc.Body, maxContentRunes))
	if feedback != "" {
		base += fmt.Sprintf(extractRetryPrompt, feedback)
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		prompt := base
		if lastErr != nil {
			prompt += fmt.Sprintf(extractRetryPrompt, lastErr.Error())
		}

		reply, err := e.llm.Generate(ctx, extractSystem, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			e.logger.Warn("Extraction call failed", "id", doc.ID, "attempt", attempt, "error", err)
			continue
		}

		result, err := e.build(job, reply)
		if err != nil {
			lastErr = err
			e.logger.Warn("Extraction output invalid", "id", doc.ID, "attempt", attempt, "error", err)
			continue
		}
		return result, nil
	}

	return nil, types.NewRejectionError(names.Extract, doc.ID, "no valid extraction").
		WithDetail("attempts", e.maxAttempts).
		WithDetail("error", lastErr.Error())
}

func (e *ExtractProcessor) build(job *types.Job, reply string) (*types.StructuredResult, error) {
	var raw extractReply
	if err := decodeJSON(reply, &raw); err != nil {
		return nil, err
	}

	severity, ok := ParseSeverity(string(raw.Severity))
	if !ok {
		e.logger.Warn("Unrecognized severity, using lowest", "id", job.Doc.ID, "severity", string(raw.Severity))
	}

	url := job.Doc.URL
	if url == "" {
		url = raw.URL
	}

	result := &types.StructuredResult{
		ID:             job.Doc.ID,
		Title:          strings.TrimSpace(job.Doc.Title),
		URL:            url,
		PublishedAt:    job.Doc.PublishedAt,
		Source:         job.Doc.Source,
		RelevanceScore: clamp01(job.Relevance),
		AttackType:     ParseAttackType(string(raw.AttackType)),
		Modality:       ParseModalities(raw.Modality),
		AffectedModels: []string(raw.AffectedModels),
		IsTheoretical:  raw.IsTheoretical,
		Severity:       severity,
		SummaryTLDR:    strings.TrimSpace(raw.SummaryTLDR),
		ProcessedAt:    e.now().UTC(),
	}
	if result.AffectedModels == nil {
		result.AffectedModels = []string{}
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}
