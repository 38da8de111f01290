package components

import (
	"context"
	"fmt"
	"log/slog"

	"radar/internal/config"
	"radar/internal/platforms"
	"radar/internal/processors"
)

// PlatformComponent builds the language model every stage talks to.
type PlatformComponent struct {
	config config.LLMConfig
	llm    processors.LLM
	logger *slog.Logger
}

func NewPlatformComponent(config config.LLMConfig, logger *slog.Logger) *PlatformComponent {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlatformComponent{config: config, logger: logger}
}

func (c *PlatformComponent) Name() string {
	return PlatformComponentName
}

func (c *PlatformComponent) Dependencies() []string {
	return []string{}
}

func (c *PlatformComponent) Validate() error {
	switch c.config.Provider {
	case "ollama":
	case "openai":
		if c.config.APIKey == "" && c.config.BaseURL == "" {
			return fmt.Errorf("platform: openai needs an api key or a compatible base url")
		}
	default:
		return fmt.Errorf("platform: unsupported provider %q", c.config.Provider)
	}
	return nil
}

func (c *PlatformComponent) Initialize(ctx context.Context) error {
	var (
		name string
		err  error
	)

	switch c.config.Provider {
	case "openai":
		var p *platforms.OpenAIPlatform
		p, err = platforms.NewOpenAIPlatform(c.config.BaseURL, c.config.Model, c.config.APIKey, c.config.Temperature)
		if err == nil {
			c.llm, name = p, p.Name()
		}
	default:
		var p *platforms.OllamaPlatform
		p, err = platforms.NewOllamaPlatform(c.config.BaseURL, c.config.Model, c.config.Temperature)
		if err == nil {
			c.llm, name = p, p.Name()
		}
	}
	if err != nil {
		return fmt.Errorf("platform: %w", err)
	}

	c.logger.Info("Language model configured", "platform", name)
	return nil
}

func (c *PlatformComponent) Close(ctx context.Context) error {
	return nil
}

func (c *PlatformComponent) LLM() processors.LLM {
	return c.llm
}
