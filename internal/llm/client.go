// Package llm talks to the Anthropic Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultMaxTokens = 2048
	apiVersion       = "2023-06-01"
)

// Config configures a Client.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	// HTTPClient is used instead of a default client when set.
	HTTPClient *http.Client
}

// APIError is a non-200 answer from the API.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// Client is a Messages API client. The HTTP client is created on first use
// and reused afterwards.
type Client struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int

	once   sync.Once
	client *http.Client
}

// New creates a client, filling defaults for empty fields.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Client{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		maxTokens: cfg.MaxTokens,
		client:    cfg.HTTPClient,
	}
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a single user message and returns the reply text.
// maxTokens <= 0 uses the client default.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := c.send(ctx, request{
		System:    system,
		Messages:  []Turn{UserText(user)},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// CompleteWithTools sends a transcript with tool declarations.
func (c *Client) CompleteWithTools(ctx context.Context, system string, turns []Turn, tools []Tool) (*Response, error) {
	req := request{
		System:   system,
		Messages: turns,
		Tools:    tools,
	}
	if len(tools) > 0 {
		// at most one tool_use block per response
		req.ToolChoice = &toolChoice{Type: "auto", DisableParallelToolUse: true}
	}
	return c.send(ctx, req)
}

type request struct {
	Model      string      `json:"model"`
	MaxTokens  int         `json:"max_tokens"`
	System     string      `json:"system,omitempty"`
	Messages   []Turn      `json:"messages"`
	Tools      []Tool      `json:"tools,omitempty"`
	ToolChoice *toolChoice `json:"tool_choice,omitempty"`
}

type toolChoice struct {
	Type                   string `json:"type"`
	DisableParallelToolUse bool   `json:"disable_parallel_tool_use,omitempty"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) httpClient() *http.Client {
	c.once.Do(func() {
		if c.client == nil {
			c.client = &http.Client{Timeout: 120 * time.Second}
		}
	})
	return c.client
}

func (c *Client) send(ctx context.Context, reqBody request) (*Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is not configured")
	}
	reqBody.Model = c.model
	if reqBody.MaxTokens <= 0 {
		reqBody.MaxTokens = c.maxTokens
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, &APIError{Status: resp.StatusCode, Type: apiErr.Error.Type, Message: apiErr.Error.Message}
		}
		return nil, &APIError{Status: resp.StatusCode, Message: string(respBody)}
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}
