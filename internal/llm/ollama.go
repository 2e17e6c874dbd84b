package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// OllamaClient talks to a local Ollama daemon over its HTTP API. No SDK is
// involved so support hosts need nothing beyond the daemon itself.
type OllamaClient struct {
	httpClient  *http.Client
	baseURL     *url.URL
	model       string
	maxTokens   int
	temperature float64
}

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
)

// NewOllamaClient builds an Ollama-backed client.
func NewOllamaClient(cfg Config) (*OllamaClient, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOllamaURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, wrapProviderError(ErrTypeConfiguration, "ollama", "invalid base URL", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}

	return &OllamaClient{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     baseURL,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Ollama generate API wire types.
type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	System  string           `json:"system,omitempty"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// Name returns the backend name.
func (c *OllamaClient) Name() string { return "ollama" }

// Complete performs one non-streaming generate call.
func (c *OllamaClient) Complete(ctx context.Context, req *Request) (*Response, error) {
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

	body, err := json.Marshal(&generateRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.SystemPrompt,
		Stream: false,
		Options: &generateOptions{
			Temperature: temperature,
			NumPredict:  maxTokens,
		},
	})
	if err != nil {
		return nil, wrapProviderError(ErrTypeInternal, "ollama", "failed to marshal request", err)
	}

	endpoint := c.baseURL.JoinPath("/api/generate")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, wrapProviderError(ErrTypeInternal, "ollama", "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapProviderError(ErrTypeNetwork, "ollama", "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		var apiErr ollamaError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, &ProviderError{
				Type:       ErrTypeProvider,
				Provider:   "ollama",
				Message:    apiErr.Error,
				StatusCode: resp.StatusCode,
			}
		}
		return nil, &ProviderError{
			Type:       ErrTypeProvider,
			Provider:   "ollama",
			Message:    fmt.Sprintf("request failed with status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, wrapProviderError(ErrTypeInternal, "ollama", "failed to decode response", err)
	}

	return &Response{
		Content:      result.Response,
		Model:        result.Model,
		FinishReason: "stop",
		Usage: TokenUsage{
			PromptTokens:     result.PromptEvalCount,
			CompletionTokens: result.EvalCount,
			TotalTokens:      result.PromptEvalCount + result.EvalCount,
		},
		CreatedAt: time.Now(),
	}, nil
}

// HealthCheck probes the daemon's tag listing, the cheapest endpoint that
// proves the server is up and answering.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	endpoint := c.baseURL.JoinPath("/api/tags")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return wrapProviderError(ErrTypeInternal, "ollama", "failed to create health check request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapProviderError(ErrTypeNetwork, "ollama", "health check failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{
			Type:       ErrTypeProvider,
			Provider:   "ollama",
			Message:    fmt.Sprintf("health check failed with status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	return nil
}

// Close implements Client. Plain HTTP keeps no persistent state.
func (c *OllamaClient) Close() error { return nil }

// SetTimeout adjusts the request timeout after construction. The setup
// command shortens it while probing.
func (c *OllamaClient) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}
