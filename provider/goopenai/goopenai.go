// Package goopenai adapts github.com/sashabaranov/go-openai to the summarist
// Provider interface. Endpoints are configured as full chat completion URLs;
// the trailing /chat/completions is trimmed to form the SDK base URL.
package goopenai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ineyio/summarist"
)

const chatCompletionsPath = "/chat/completions"

// Provider calls chat completions through the go-openai SDK.
type Provider struct {
	httpClient *http.Client
}

var _ summarist.Provider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client handed to the SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a go-openai backed provider.
func New(opts ...Option) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return summarist.AdapterGoOpenAI }

// BaseURL converts a chat completion endpoint into an SDK base URL.
func BaseURL(endpoint string) string {
	return strings.TrimSuffix(strings.TrimRight(endpoint, "/"), chatCompletionsPath)
}

func (p *Provider) ChatCompletion(ctx context.Context, req summarist.ProviderRequest) (summarist.ProviderResponse, error) {
	cfg := openai.DefaultConfig(req.APIKey)
	cfg.BaseURL = BaseURL(req.Endpoint)
	if p.httpClient != nil {
		cfg.HTTPClient = p.httpClient
	}
	client := openai.NewClientWithConfig(cfg)

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]openai.ChatCompletionMessage, len(req.Messages)),
	}
	for i, m := range req.Messages {
		chatReq.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	if req.MaxTokens != nil {
		chatReq.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return summarist.ProviderResponse{}, mapError(err)
	}

	if len(resp.Choices) == 0 {
		return summarist.ProviderResponse{}, summarist.ErrMalformedResponse
	}
	// The client decodes a missing or null content as "".
	if msg := resp.Choices[0].Message; msg.Content == "" && len(msg.MultiContent) == 0 && len(msg.ToolCalls) == 0 {
		return summarist.ProviderResponse{}, fmt.Errorf("%w: choice has no message content", summarist.ErrMalformedResponse)
	}

	return summarist.ProviderResponse{
		ID:           resp.ID,
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Model:        resp.Model,
		Usage: summarist.Usage{
			PromptTokens:     int64(resp.Usage.PromptTokens),
			CompletionTokens: int64(resp.Usage.CompletionTokens),
			TotalTokens:      int64(resp.Usage.TotalTokens),
		},
	}, nil
}

// mapError sorts SDK errors into the summarist call failure kinds.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &summarist.HTTPError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := string(reqErr.Body)
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &summarist.HTTPError{StatusCode: reqErr.HTTPStatusCode, Body: body}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: invalid JSON: %v", summarist.ErrMalformedResponse, err)
	}

	return fmt.Errorf("%w: %v", summarist.ErrTransport, err)
}
