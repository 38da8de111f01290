package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Agent    AgentConfig    `toml:"agent"`
	Redis    RedisConfig    `toml:"redis"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Storage  StorageConfig  `toml:"storage"`
	LLM      LLMConfig      `toml:"llm"`
	Filter   FilterConfig   `toml:"filter"`
	Critique CritiqueConfig `toml:"critique"`
	Curator  CuratorConfig  `toml:"curator"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	Ingest   IngestConfig   `toml:"ingest"`
}

type AgentConfig struct {
	Name           string `toml:"name"`
	ConsumerGroup  string `toml:"consumer_group" env:"RADAR_CONSUMER_GROUP"`
	ConsumerName   string `toml:"consumer_name" env:"RADAR_CONSUMER_NAME"`
	PendingTopic   string `toml:"pending_topic"`
	AnalyzedTopic  string `toml:"analyzed_topic"`
	PollInterval   string `toml:"poll_interval" env:"RADAR_POLL_INTERVAL"`
	TriggerBlock   string `toml:"trigger_block"`
	BatchSize      int    `toml:"batch_size" env:"RADAR_BATCH_SIZE"`
	AckRetries     int    `toml:"ack_retries"`
	PersistRetries int    `toml:"persist_retries"`
	RetryBackoff   string `toml:"retry_backoff"`
	ErrorBackoff   string `toml:"error_backoff"`
}

type RedisConfig struct {
	URL string `toml:"url" env:"REDIS_URL"`
}

type LedgerConfig struct {
	Type   string `toml:"type" env:"RADAR_LEDGER"`
	TTL    string `toml:"ttl"`
	Prefix string `toml:"prefix"`
}

type StorageConfig struct {
	Type string `toml:"type"`
	Path string `toml:"path" env:"RADAR_DB_PATH"`
}

type LLMConfig struct {
	Provider     string  `toml:"provider" env:"LLM_PROVIDER"`
	Model        string  `toml:"model" env:"LLM_MODEL"`
	BaseURL      string  `toml:"base_url" env:"LLM_BASE_URL"`
	APIKey       string  `toml:"api_key" env:"OPENAI_API_KEY"`
	Temperature  float64 `toml:"temperature"`
	StageTimeout string  `toml:"stage_timeout" env:"RADAR_STAGE_TIMEOUT"`
	MaxAttempts  int     `toml:"max_attempts"`
}

type FilterConfig struct {
	RejectThreshold     int     `toml:"reject_threshold" env:"FILTER_REGEX_THRESHOLD"`
	AutoAcceptThreshold int     `toml:"auto_accept_threshold" env:"FILTER_AUTO_ACCEPT_THRESHOLD"`
	MinConfidence       float64 `toml:"min_confidence"`
}

type CritiqueConfig struct {
	// MaxRevisions of 0 means the default; -1 disables revisions.
	MaxRevisions int `toml:"max_revisions"`
}

type CuratorConfig struct {
	Enabled      bool   `toml:"enabled" env:"RADAR_CURATOR"`
	Group        string `toml:"group"`
	Threshold    int    `toml:"threshold"`
	MaxRevisions int    `toml:"max_revisions"`
}

type ServerConfig struct {
	Enabled  bool   `toml:"enabled" env:"RADAR_SERVER"`
	Port     string `toml:"port" env:"RADAR_PORT"`
	FeedSize int    `toml:"feed_size"`
}

type LoggingConfig struct {
	Level     string `toml:"level" env:"LOG_LEVEL"`
	Format    string `toml:"format" env:"LOG_FORMAT"`
	AuditPath string `toml:"audit_path" env:"RADAR_AUDIT_LOG"`
}

type IngestConfig struct {
	// Mode is "api" (query API) or "listing" (category listing pages).
	Mode        string   `toml:"mode" env:"RADAR_INGEST_MODE"`
	ListingURLs []string `toml:"listing_urls"`
	Query       string   `toml:"query"`
	MaxResults  int      `toml:"max_results" env:"ARXIV_MAX_RESULTS"`
	DaysBack    int      `toml:"days_back"`
	PageDelay   string   `toml:"page_delay"`
	BaseURL     string   `toml:"base_url"`
}

// Load reads path (when it exists), applies environment overrides, then
// fills defaults and validates.
func Load(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	a := &config.Agent
	setDefault(&a.Name, "radar")
	setDefault(&a.ConsumerGroup, "agent_group")
	setDefault(&a.ConsumerName, "agent_worker_1")
	setDefault(&a.PendingTopic, "papers:pending")
	setDefault(&a.AnalyzedTopic, "papers:analyzed")
	setDefault(&a.PollInterval, "5s")
	setDefault(&a.TriggerBlock, "1s")
	setDefault(&a.RetryBackoff, "1s")
	setDefault(&a.ErrorBackoff, "5s")
	if a.BatchSize <= 0 {
		a.BatchSize = 10
	}
	if a.AckRetries <= 0 {
		a.AckRetries = 3
	}
	if a.PersistRetries <= 0 {
		a.PersistRetries = 3
	}

	setDefault(&config.Redis.URL, "redis://localhost:6379/0")

	setDefault(&config.Ledger.Type, "redis")
	setDefault(&config.Ledger.TTL, "720h")
	setDefault(&config.Ledger.Prefix, "processed:")
	if config.Ledger.Type != "redis" && config.Ledger.Type != "memory" {
		return fmt.Errorf("unsupported ledger type: %s", config.Ledger.Type)
	}

	setDefault(&config.Storage.Type, "sqlite")
	setDefault(&config.Storage.Path, "./radar.db")

	l := &config.LLM
	setDefault(&l.Provider, "ollama")
	setDefault(&l.Model, "qwen2.5:7b")
	setDefault(&l.StageTimeout, "120s")
	if l.MaxAttempts <= 0 {
		l.MaxAttempts = 2
	}
	if l.Provider != "ollama" && l.Provider != "openai" {
		return fmt.Errorf("unsupported llm provider: %s", l.Provider)
	}

	if config.Filter.RejectThreshold == 0 {
		config.Filter.RejectThreshold = 30
	}
	if config.Filter.AutoAcceptThreshold == 0 {
		config.Filter.AutoAcceptThreshold = 70
	}
	if config.Filter.RejectThreshold > config.Filter.AutoAcceptThreshold {
		return fmt.Errorf("filter reject threshold %d above auto-accept threshold %d",
			config.Filter.RejectThreshold, config.Filter.AutoAcceptThreshold)
	}

	if config.Critique.MaxRevisions == 0 {
		config.Critique.MaxRevisions = 1
	}

	setDefault(&config.Curator.Group, "curator_group")
	if config.Curator.Threshold <= 0 {
		config.Curator.Threshold = 10
	}
	if config.Curator.MaxRevisions == 0 {
		config.Curator.MaxRevisions = 2
	}

	setDefault(&config.Server.Port, "8080")
	if config.Server.FeedSize <= 0 {
		config.Server.FeedSize = 20
	}

	setDefault(&config.Logging.Level, "info")
	setDefault(&config.Logging.Format, "text")

	setDefault(&config.Ingest.Mode, "api")
	if config.Ingest.Mode != "api" && config.Ingest.Mode != "listing" {
		return fmt.Errorf("unsupported ingest mode: %s", config.Ingest.Mode)
	}
	if len(config.Ingest.ListingURLs) == 0 {
		config.Ingest.ListingURLs = []string{"https://arxiv.org/list/cs.CR/new"}
	}
	setDefault(&config.Ingest.Query, "cat:cs.CR AND (abs:LLM OR abs:adversarial OR abs:jailbreak)")
	setDefault(&config.Ingest.BaseURL, "http://export.arxiv.org/api/query")
	setDefault(&config.Ingest.PageDelay, "3s")
	if config.Ingest.MaxResults <= 0 {
		config.Ingest.MaxResults = 50
	}
	if config.Ingest.DaysBack <= 0 {
		config.Ingest.DaysBack = 1
	}

	for name, value := range map[string]string{
		"agent.poll_interval": a.PollInterval,
		"agent.trigger_block": a.TriggerBlock,
		"agent.retry_backoff": a.RetryBackoff,
		"agent.error_backoff": a.ErrorBackoff,
		"ledger.ttl":          config.Ledger.TTL,
		"llm.stage_timeout":   l.StageTimeout,
		"ingest.page_delay":   config.Ingest.PageDelay,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Duration parses a value already checked by validateConfig.
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
