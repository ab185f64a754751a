package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Default Anthropic configuration values
const (
	DefaultAnthropicTimeout  = 2 * time.Minute
	DefaultAnthropicModel    = "claude-sonnet-4-20250514"
	DefaultAnthropicBaseURL  = "https://api.anthropic.com"
	DefaultAnthropicProvider = "cloud"
)

// AnthropicClient is a cloud provider backed by the Anthropic API.
type AnthropicClient struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// AnthropicOption configures the Anthropic client.
type AnthropicOption func(*AnthropicClient)

// WithAnthropicAPIKey sets the API key.
func WithAnthropicAPIKey(key string) AnthropicOption {
	return func(a *AnthropicClient) {
		a.apiKey = key
	}
}

// WithAnthropicModel sets the model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(a *AnthropicClient) {
		a.model = model
	}
}

// WithAnthropicBaseURL sets the API base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(a *AnthropicClient) {
		a.baseURL = url
	}
}

// WithAnthropicHTTPClient sets a custom HTTP client.
func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(a *AnthropicClient) {
		a.httpClient = client
	}
}

// WithAnthropicProviderName sets the provider name reported in responses
// and matched against routing policies.
func WithAnthropicProviderName(name string) AnthropicOption {
	return func(a *AnthropicClient) {
		a.name = name
	}
}

// NewAnthropicClient creates an Anthropic-backed provider client. The API
// key defaults to the ANTHROPIC_API_KEY environment variable.
func NewAnthropicClient(opts ...AnthropicOption) *AnthropicClient {
	a := &AnthropicClient{
		name:      DefaultAnthropicProvider,
		apiKey:    os.Getenv("ANTHROPIC_API_KEY"),
		baseURL:   DefaultAnthropicBaseURL,
		model:     DefaultAnthropicModel,
		maxTokens: 4096,
		httpClient: &http.Client{
			Timeout: DefaultAnthropicTimeout,
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// anthropicRequest is the API request format.
type anthropicRequest struct {
	Model     string         `json:"model"`
	Messages  []anthropicMsg `json:"messages"`
	System    string         `json:"system,omitempty"`
	MaxTokens int            `json:"max_tokens"`
}

type anthropicMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the API response format.
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
}

// Generate sends the prompt and returns a Response. API and transport
// failures come back as Success=false, never as a panic.
func (a *AnthropicClient) Generate(ctx context.Context, req Request) Response {
	apiReq := &anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  []anthropicMsg{{Role: "user", Content: req.Prompt}},
	}
	if system, ok := req.Metadata["system"].(string); ok {
		apiReq.System = system
	}

	resp, err := a.doRequest(ctx, apiReq)
	if err != nil {
		return Response{
			Provider: a.name,
			Model:    a.model,
			Success:  false,
			Err:      err.Error(),
			Metadata: req.Metadata,
		}
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return Response{
		Provider: a.name,
		Model:    resp.Model,
		Content:  content,
		Success:  true,
		Metadata: req.Metadata,
	}
}

func (a *AnthropicClient) doRequest(ctx context.Context, req *anthropicRequest) (*anthropicResponse, error) {
	const maxRetries = 5

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/v1/messages", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", a.apiKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")

		httpResp, err := a.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}

		respBody, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if httpResp.StatusCode == http.StatusOK {
			var resp anthropicResponse
			if err := json.Unmarshal(respBody, &resp); err != nil {
				return nil, fmt.Errorf("unmarshal response: %w", err)
			}
			return &resp, nil
		}

		// Retry on 429 (rate limit) and 529 (overloaded).
		if (httpResp.StatusCode == 429 || httpResp.StatusCode == 529) && attempt < maxRetries {
			wait := retryAfterDelay(httpResp, attempt)
			slog.Warn("API rate limited, retrying", "status", httpResp.StatusCode, "attempt", attempt+1, "wait", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		return nil, fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(respBody))
	}

	return nil, fmt.Errorf("max retries exceeded")
}

// retryAfterDelay returns how long to wait before retrying a rate-limited
// request. It respects the retry-after header if present, otherwise uses
// exponential backoff.
func retryAfterDelay(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("retry-after"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	// Exponential backoff: 5s, 10s, 20s, 40s, 60s
	wait := time.Duration(5<<uint(attempt)) * time.Second
	if wait > 60*time.Second {
		wait = 60 * time.Second
	}
	return wait
}
