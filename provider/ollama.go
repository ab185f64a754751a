package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default Ollama configuration values
const (
	DefaultOllamaTimeout  = 2 * time.Minute
	DefaultOllamaModel    = "llama3.1"
	DefaultOllamaBaseURL  = "http://localhost:11434"
	DefaultOllamaProvider = "ollama"
)

// OllamaClient is a local provider backed by an Ollama server.
type OllamaClient struct {
	name       string
	baseURL    string
	model      string
	httpClient *http.Client
}

// OllamaOption configures the Ollama client.
type OllamaOption func(*OllamaClient)

// WithOllamaModel sets the model.
func WithOllamaModel(model string) OllamaOption {
	return func(o *OllamaClient) {
		o.model = model
	}
}

// WithOllamaBaseURL sets the server base URL.
func WithOllamaBaseURL(url string) OllamaOption {
	return func(o *OllamaClient) {
		o.baseURL = url
	}
}

// WithOllamaHTTPClient sets a custom HTTP client.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(o *OllamaClient) {
		o.httpClient = client
	}
}

// WithOllamaProviderName sets the provider name reported in responses
// and matched against routing policies.
func WithOllamaProviderName(name string) OllamaOption {
	return func(o *OllamaClient) {
		o.name = name
	}
}

// NewOllamaClient creates an Ollama-backed provider client.
func NewOllamaClient(opts ...OllamaOption) *OllamaClient {
	o := &OllamaClient{
		name:    DefaultOllamaProvider,
		baseURL: DefaultOllamaBaseURL,
		model:   DefaultOllamaModel,
		httpClient: &http.Client{
			Timeout: DefaultOllamaTimeout,
		},
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends the prompt to /api/generate and returns a Response.
// Server and transport failures come back as Success=false.
func (o *OllamaClient) Generate(ctx context.Context, req Request) Response {
	fail := func(err error) Response {
		return Response{
			Provider: o.name,
			Model:    o.model,
			Success:  false,
			Err:      err.Error(),
			Metadata: req.Metadata,
		}
	}

	body, err := json.Marshal(ollamaRequest{
		Model:  o.model,
		Prompt: req.Prompt,
		Stream: false,
	})
	if err != nil {
		return fail(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return fail(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return fail(fmt.Errorf("http request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fail(fmt.Errorf("read response: %w", err))
	}
	if httpResp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("server error %d: %s", httpResp.StatusCode, string(respBody)))
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fail(fmt.Errorf("unmarshal response: %w", err))
	}

	return Response{
		Provider: o.name,
		Model:    resp.Model,
		Content:  resp.Response,
		Success:  true,
		Metadata: req.Metadata,
	}
}
