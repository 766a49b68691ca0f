package summarist

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Adapter names accepted in ProviderConfig.Adapter.
const (
	AdapterOpenAICompat = "openai-compat"
	AdapterGoOpenAI     = "go-openai"
)

// Config is the top-level configuration.
type Config struct {
	Providers   []ProviderConfig `yaml:"providers"`
	Prompts     PromptConfig     `yaml:"prompts"`
	MaxTokens   int              `yaml:"max_tokens"`
	Temperature float64          `yaml:"temperature"`
	Timeout     time.Duration    `yaml:"timeout"`
	Quota       QuotaConfig      `yaml:"quota"`
	Logging     LoggingConfig    `yaml:"logging"`
	Metrics     MetricsConfig    `yaml:"metrics"`
}

// ProviderConfig configures one provider. Slice order in Config.Providers is
// failover priority.
type ProviderConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Adapter  string `yaml:"adapter"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	// APIKey is the stored form; it is resolved by a SecretResolver at call time.
	APIKey        string  `yaml:"api_key"`
	DailyLimit    int64   `yaml:"daily_limit"`     // <= 0 = unlimited
	RatePerMinute float64 `yaml:"rate_per_minute"` // 0 = no pacing
}

// DisplayName returns Name, falling back to ID.
func (p ProviderConfig) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// Unlimited reports whether the provider has no daily cap.
func (p ProviderConfig) Unlimited() bool { return p.DailyLimit <= 0 }

// PromptConfig holds the persisted prompt templates.
type PromptConfig struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// QuotaConfig selects where ledger state is persisted.
type QuotaConfig struct {
	Store string `yaml:"store"` // memory, file, sqlite, redis, postgres
	Path  string `yaml:"path"`  // file and sqlite
	DSN   string `yaml:"dsn"`   // redis address or postgres connection string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Backend string `yaml:"backend"` // slog, zap
	Level   string `yaml:"level"`   // debug, info, warn, error
	Format  string `yaml:"format"`  // text, json
}

// MetricsConfig enables Prometheus metrics. Textfile is written once a run
// finishes, in the node_exporter textfile collector format.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Default endpoints for well-known OpenAI-compatible services.
var DefaultEndpoints = map[string]string{
	"openai":   "https://api.openai.com/v1/chat/completions",
	"deepseek": "https://api.deepseek.com/chat/completions",
	"gemini":   "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() Config {
	return Config{
		Prompts: PromptConfig{
			System: "You are a literary critic who writes deep, insightful book summaries.",
			User: "Write a detailed summary of the book \"{title}\" by {authors} " +
				"(publisher: {publisher}, published: {pubdate}, series: {series}).",
		},
		MaxTokens:   4096,
		Temperature: 0.7,
		Timeout:     60 * time.Second,
		Quota:       QuotaConfig{Store: "memory"},
		Logging:     LoggingConfig{Backend: "slog", Level: "info", Format: "text"},
	}
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("summarist: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("summarist: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for required fields and consistency.
// An empty provider list is not an error here; Generate reports it per item.
func (c Config) Validate() error {
	ids := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("summarist: config: providers[%d]: id is required", i)
		}
		if ids[p.ID] {
			return fmt.Errorf("summarist: config: duplicate provider id %q", p.ID)
		}
		ids[p.ID] = true

		if p.Endpoint == "" {
			return fmt.Errorf("summarist: config: providers[%d] (%s): endpoint is required", i, p.ID)
		}
		if p.Model == "" {
			return fmt.Errorf("summarist: config: providers[%d] (%s): model is required", i, p.ID)
		}
		switch p.Adapter {
		case "", AdapterOpenAICompat, AdapterGoOpenAI:
		default:
			return fmt.Errorf("summarist: config: providers[%d] (%s): invalid adapter %q", i, p.ID, p.Adapter)
		}
		if p.RatePerMinute < 0 {
			return fmt.Errorf("summarist: config: providers[%d] (%s): rate_per_minute must not be negative", i, p.ID)
		}
	}

	switch c.Quota.Store {
	case "", "memory":
	case "file", "sqlite":
		if c.Quota.Path == "" {
			return fmt.Errorf("summarist: config: quota: path is required for store %q", c.Quota.Store)
		}
	case "redis", "postgres":
		if c.Quota.DSN == "" {
			return fmt.Errorf("summarist: config: quota: dsn is required for store %q", c.Quota.Store)
		}
	default:
		return fmt.Errorf("summarist: config: quota: invalid store %q", c.Quota.Store)
	}

	switch c.Logging.Backend {
	case "", "slog", "zap":
	default:
		return fmt.Errorf("summarist: config: logging: invalid backend %q", c.Logging.Backend)
	}

	return nil
}
