// Package llm provides a single-shot chat completion client for the text generators used by the
// saboteur, plus helpers for recovering JSON from model output.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// ErrNoCredential is returned by NewClient when the endpoint has no API key.
var ErrNoCredential = errors.New("no API key configured for text generation")

// Endpoint describes the single generation endpoint a Client talks to.
type Endpoint struct {
	// Provider selects the wire format ("openai", "anthropic").
	Provider string

	// URL is the provider base URL. Empty uses the provider default.
	URL string

	// Model is the model identifier sent with every request.
	Model string

	// APIKey is the bearer credential. Required.
	APIKey string
}

// Client sends exactly one completion request per Complete call.
// There is no retry and no fallback: a failed call is reported to the caller as-is.
type Client struct {
	endpoint   Endpoint
	provider   Provider
	httpClient *http.Client
	logger     *slog.Logger
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines an LLM completion request.
type Request struct {
	// Messages is the chat history to send to the LLM.
	Messages []Message

	// Temperature controls randomness. nil uses endpoint default, 0 is deterministic.
	Temperature *float64

	// MaxTokens limits response length. 0 uses endpoint default.
	MaxTokens int
}

// TokenUsage represents token consumption details for an LLM call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the LLM completion result.
type Response struct {
	// RequestID correlates the call with the orchestration that issued it.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the model reported by the endpoint.
	Model string

	// Usage contains token consumption metrics when the provider reports them.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout bounds each request. Zero leaves the transport default in place.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		if d > 0 {
			client.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// NewClient creates a client for the given endpoint.
// It returns ErrNoCredential when the endpoint carries no API key.
func NewClient(ep Endpoint, opts ...ClientOption) (*Client, error) {
	if ep.APIKey == "" {
		return nil, ErrNoCredential
	}
	if ep.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, fmt.Errorf("unknown provider: %s", ep.Provider)
	}

	c := &Client{
		endpoint:   ep,
		provider:   provider,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.endpoint.Model
}

// Complete sends a single completion request.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, NewFatalError(fmt.Errorf("at least one message is required"))
	}

	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	startedAt := time.Now()

	resp, err := c.doRequest(ctx, req)
	if err != nil {
		c.logger.Warn("LLM request failed",
			"request_id", requestID,
			"provider", c.endpoint.Provider,
			"model", c.endpoint.Model,
			"error_kind", KindOf(err),
			"duration", time.Since(startedAt),
			"error", err)
		return nil, err
	}

	resp.RequestID = requestID
	c.logger.Debug("LLM request completed",
		"request_id", requestID,
		"model", resp.Model,
		"finish_reason", resp.FinishReason,
		"total_tokens", resp.Usage.TotalTokens,
		"duration", time.Since(startedAt))
	return resp, nil
}

// doRequest executes the HTTP request to the endpoint.
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	url := c.provider.BuildURL(c.endpoint.URL)

	body, err := c.provider.BuildRequestBody(c.endpoint.Model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.provider.SetHeaders(httpReq, c.endpoint.APIKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are transient
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, statusError(httpResp.StatusCode, respBody)
	}

	resp, err := c.provider.ParseResponse(respBody)
	if err != nil {
		return nil, NewFatalError(err)
	}
	return resp, nil
}
