package processors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"radar/internal/processors/names"
	"radar/internal/types"
)

type FilterConfig struct {
	RejectThreshold     int
	AutoAcceptThreshold int
	MinConfidence       float64
}

type FilterProcessor struct {
	llm    LLM
	config FilterConfig
	logger *slog.Logger
}

func NewFilterProcessor(llm LLM, config FilterConfig, logger *slog.Logger) *FilterProcessor {
	if config.RejectThreshold == 0 {
		config.RejectThreshold = 30
	}
	if config.AutoAcceptThreshold == 0 {
		config.AutoAcceptThreshold = 70
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FilterProcessor{
		llm:    llm,
		config: config,
		logger: logger.With("processor", names.Filter),
	}
}

func (f *FilterProcessor) Name() string {
	return names.Filter
}

type filterReply struct {
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence_score"`
	IsRelevant bool    `json:"is_relevant"`
}

func (f *FilterProcessor) Process(ctx context.Context, job *types.Job) error {
	doc := job.Doc
	pre := PreFilter(doc.Title, doc.Body)
	reasons := strings.Join(pre.Reasons, "; ")

	if pre.Killed || pre.Score < f.config.RejectThreshold {
		f.logger.Info("Pre-filter rejected", "id", doc.ID, "score", pre.Score, "reasons", reasons)
		return types.NewRejectionError(names.Filter, doc.ID, "below keyword threshold").
			WithDetail("score", pre.Score).
			WithDetail("reasons", reasons)
	}

	if pre.Score >= f.config.AutoAcceptThreshold {
		f.logger.Info("Pre-filter auto-accepted", "id", doc.ID, "score", pre.Score)
		job.Relevance = pre.Confidence
		job.Reasoning = reasons
		return nil
	}

	prompt := fmt.Sprintf(filterPrompt, doc.Title, truncate(doc.Body, 600), pre.Score, reasons)
	reply, err := f.llm.Generate(ctx, filterSystem, prompt)

	var decision filterReply
	if err == nil {
		err = decodeJSON(reply, &decision)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("LLM filter failed, using pre-filter decision", "id", doc.ID, "score", pre.Score, "error", err)
		if !pre.Accept {
			return types.NewRejectionError(names.Filter, doc.ID, "pre-filter fallback rejected").
				WithDetail("score", pre.Score).
				WithDetail("llm_error", err.Error())
		}
		job.Relevance = pre.Confidence
		job.Reasoning = reasons
		return nil
	}

	if !decision.IsRelevant {
		f.logger.Info("LLM filter rejected", "id", doc.ID, "confidence", decision.Confidence)
		return types.NewRejectionError(names.Filter, doc.ID, "not relevant").
			WithDetail("reasoning", decision.Reasoning).
			WithDetail("confidence", decision.Confidence)
	}
	if decision.Confidence < f.config.MinConfidence {
		return types.NewRejectionError(names.Filter, doc.ID, "confidence too low").
			WithDetail("confidence", decision.Confidence)
	}

	job.Relevance = clamp01(decision.Confidence)
	job.Reasoning = decision.Reasoning
	f.logger.Info("LLM filter accepted", "id", doc.ID, "confidence", job.Relevance)
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
