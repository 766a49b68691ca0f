// Package openaicompat is a plain net/http adapter for OpenAI-compatible chat
// completion endpoints (OpenAI, DeepSeek, Gemini's OpenAI endpoint, Ollama,
// and others).
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ineyio/summarist"
)

const maxErrorBody = 1024

// Provider posts chat completion requests to the endpoint carried by each
// request.
type Provider struct {
	httpClient *http.Client
}

var _ summarist.Provider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a new OpenAI-compatible provider. The default HTTP client has a
// 60s timeout; the summarist client also bounds each call with its context.
func New(opts ...Option) *Provider {
	p := &Provider{
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return summarist.AdapterOpenAICompat }

// apiRequest is the OpenAI chat completion request format.
type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
	MaxTokens   *int         `json:"max_tokens,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiResponse is the OpenAI chat completion response format. Message and
// Content are pointers so a choice lacking either is detected as malformed.
type apiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message *struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

func (p *Provider) ChatCompletion(ctx context.Context, req summarist.ProviderRequest) (summarist.ProviderResponse, error) {
	httpResp, err := p.doRequest(ctx, req)
	if err != nil {
		return summarist.ProviderResponse{}, err
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return summarist.ProviderResponse{}, err
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return summarist.ProviderResponse{}, fmt.Errorf("%w: read body: %v", summarist.ErrTransport, err)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return summarist.ProviderResponse{}, fmt.Errorf("%w: invalid JSON: %v", summarist.ErrMalformedResponse, err)
	}

	if len(resp.Choices) == 0 {
		return summarist.ProviderResponse{}, summarist.ErrMalformedResponse
	}
	msg := resp.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return summarist.ProviderResponse{}, fmt.Errorf("%w: choice has no message content", summarist.ErrMalformedResponse)
	}

	return summarist.ProviderResponse{
		ID:           resp.ID,
		Content:      *msg.Content,
		FinishReason: resp.Choices[0].FinishReason,
		Model:        resp.Model,
		Usage: summarist.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func buildRequest(req summarist.ProviderRequest) apiRequest {
	msgs := make([]apiMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = apiMessage{Role: m.Role, Content: m.Content}
	}
	return apiRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func (p *Provider) doRequest(ctx context.Context, req summarist.ProviderRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("summarist: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", summarist.ErrTransport, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", summarist.ErrTransport, err)
	}

	return resp, nil
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read body for error context, but don't fail if we can't.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &summarist.HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
}
