package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

type OllamaPlatform struct {
	client      *api.Client
	model       string
	temperature float64
}

// NewOllamaPlatform talks to baseURL, or to OLLAMA_HOST when baseURL is empty.
func NewOllamaPlatform(baseURL, model string, temperature float64) (*OllamaPlatform, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama: model cannot be empty")
	}

	var client *api.Client
	if baseURL == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama: failed to create client: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("ollama: invalid base url %q: %w", baseURL, err)
		}
		client = api.NewClient(u, http.DefaultClient)
	}

	return &OllamaPlatform{
		client:      client,
		model:       model,
		temperature: temperature,
	}, nil
}

func (o *OllamaPlatform) Name() string {
	return "ollama:" + o.model
}

func (o *OllamaPlatform) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := &api.GenerateRequest{
		Model:  o.model,
		System: system,
		Prompt: prompt,
		Format: json.RawMessage(`"json"`),
		Stream: new(bool),
		Options: map[string]interface{}{
			"temperature": o.temperature,
		},
	}

	var out strings.Builder
	respFunc := func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	}

	if err := o.client.Generate(ctx, req, respFunc); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out.String(), nil
}
