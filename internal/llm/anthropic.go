package llm

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// NewAnthropicClient builds an Anthropic-backed client.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, newProviderError(ErrTypeConfiguration, "anthropic", "API key not configured")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name returns the backend name.
func (c *AnthropicClient) Name() string { return "anthropic" }

// Complete performs one completion through the Messages API.
func (c *AnthropicClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.Int(int64(maxTokens)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		}),
		Temperature: anthropic.Float(temperature),
	}
	if req.SystemPrompt != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(req.SystemPrompt),
		})
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapProviderError(ErrTypeProvider, "anthropic", "API call failed", err)
	}
	if len(message.Content) == 0 {
		return nil, newProviderError(ErrTypeProvider, "anthropic", "empty response")
	}

	textBlock, ok := message.Content[0].AsUnion().(anthropic.TextBlock)
	if !ok {
		return nil, newProviderError(ErrTypeProvider, "anthropic", "unexpected response format")
	}

	return &Response{
		Content:      textBlock.Text,
		Model:        model,
		FinishReason: string(message.StopReason),
		Usage: TokenUsage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
		CreatedAt: time.Now(),
	}, nil
}

// Close implements Client. The SDK keeps no persistent connections.
func (c *AnthropicClient) Close() error { return nil }
