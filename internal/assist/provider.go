package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TextProvider is the opaque text-generation collaborator: prompt in,
// free text out. Any hosted model API can sit behind it.
type TextProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrProviderUnavailable marks a deployment with no generation backend
// configured; callers fall back to the stock advice text.
var ErrProviderUnavailable = errors.New("text provider unavailable")

// HTTPProvider calls a completion-style endpoint over HTTP.
type HTTPProvider struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

type HTTPProviderConfig struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (p *HTTPProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: p.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation call returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read generation response: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		// Plain-text endpoints are acceptable collaborators too.
		return string(data), nil
	}
	return out.Text, nil
}

// MockProvider returns canned responses and records prompts, for tests.
type MockProvider struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockProvider) Generate(_ context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
