package platforms

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIPlatform serves any OpenAI-compatible chat completions endpoint.
type OpenAIPlatform struct {
	llm         *openai.LLM
	model       string
	temperature float64
}

func NewOpenAIPlatform(baseURL, model, token string, temperature float64) (*OpenAIPlatform, error) {
	if model == "" {
		return nil, fmt.Errorf("openai: model cannot be empty")
	}

	opts := []openai.Option{openai.WithModel(model)}
	if token != "" {
		opts = append(opts, openai.WithToken(token))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to create client: %w", err)
	}

	return &OpenAIPlatform{llm: llm, model: model, temperature: temperature}, nil
}

func (o *OpenAIPlatform) Name() string {
	return "openai:" + o.model
}

func (o *OpenAIPlatform) Generate(ctx context.Context, system, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := o.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(o.temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai generate: empty response")
	}
	return resp.Choices[0].Content, nil
}
