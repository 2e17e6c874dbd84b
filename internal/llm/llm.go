// Package llm wraps external text-generation services behind one Client
// interface and adapts them to the analyzer's optional hooks. Three
// backends compile in: Anthropic and OpenAI through their official SDKs,
// and Ollama over its plain HTTP API for air-gapped support hosts. Every
// call is best-effort from the analysis pipeline's point of view; a dead
// backend degrades the summary, never the analysis.
package llm

import (
	"context"
	"time"
)

// Request is one completion request. Zero fields fall back to the client's
// configured defaults.
type Request struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Model        string  `json:"model,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
}

// Response is one completion result.
type Response struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	FinishReason string     `json:"finish_reason"`
	Usage        TokenUsage `json:"usage"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TokenUsage tracks token consumption for one request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client is one text-generation backend.
type Client interface {
	// Name identifies the backend ("anthropic", "openai", "ollama").
	Name() string

	// Complete performs one completion.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Close releases backend resources.
	Close() error
}

// HealthChecker is implemented by clients that can probe their backend
// cheaply. The setup command uses it; analysis never does.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config selects and tunes a backend.
type Config struct {
	// Provider picks the backend: "anthropic", "openai" or "ollama".
	Provider string `yaml:"provider"`

	// APIKey authenticates hosted backends. Ollama ignores it.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend endpoint. Required for nothing;
	// Ollama defaults to the local daemon.
	BaseURL string `yaml:"base_url"`

	// Model is the default model name.
	Model string `yaml:"model"`

	// MaxTokens caps response length.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the default sampling temperature.
	Temperature float64 `yaml:"temperature"`

	// Timeout bounds one request.
	Timeout time.Duration `yaml:"timeout"`

	// CacheTTL enables response caching when positive. Identical
	// requests within the window are served from memory.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// NewClient builds the configured backend, wrapped in a response cache
// when Config.CacheTTL is set.
func NewClient(cfg Config) (Client, error) {
	cfg = cfg.withDefaults()

	var client Client
	var err error
	switch cfg.Provider {
	case "anthropic":
		client, err = NewAnthropicClient(cfg)
	case "openai":
		client, err = NewOpenAIClient(cfg)
	case "ollama", "local":
		client, err = NewOllamaClient(cfg)
	default:
		return nil, &ProviderError{
			Type:     ErrTypeConfiguration,
			Provider: cfg.Provider,
			Message:  "unknown provider",
		}
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheTTL > 0 {
		return NewCachedClient(client, cfg.CacheTTL)
	}
	return client, nil
}
