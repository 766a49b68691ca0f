package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ineyio/summarist"
)

// Provider is a mock adapter for testing.
type Provider struct {
	name         string
	content      string
	latency      time.Duration
	failAfter    int
	callCount    atomic.Int64
	staticErr    error
	usage        summarist.Usage
	responseFunc func(summarist.ProviderRequest) (summarist.ProviderResponse, error)

	mu       sync.Mutex
	requests []summarist.ProviderRequest
}

var _ summarist.Provider = (*Provider)(nil)

// Option configures a mock Provider.
type Option func(*Provider)

// New creates a mock provider with the given options. By default it
// registers as the openai-compat adapter.
func New(opts ...Option) *Provider {
	p := &Provider{
		name:    summarist.AdapterOpenAICompat,
		content: "Hello from mock provider",
		usage: summarist.Usage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithName sets the adapter name.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithContent sets the generated text.
func WithContent(content string) Option {
	return func(p *Provider) { p.content = content }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(p *Provider) { p.latency = d }
}

// WithFailAfter makes the provider fail after N successful calls.
func WithFailAfter(n int) Option {
	return func(p *Provider) { p.failAfter = n }
}

// WithError makes the provider always return this error.
func WithError(err error) Option {
	return func(p *Provider) { p.staticErr = err }
}

// WithUsage sets the usage returned by the mock.
func WithUsage(u summarist.Usage) Option {
	return func(p *Provider) { p.usage = u }
}

// WithResponseFunc sets a custom response function.
func WithResponseFunc(fn func(summarist.ProviderRequest) (summarist.ProviderResponse, error)) Option {
	return func(p *Provider) { p.responseFunc = fn }
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) ChatCompletion(ctx context.Context, req summarist.ProviderRequest) (summarist.ProviderResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return summarist.ProviderResponse{}, ctx.Err()
		}
	}

	count := p.callCount.Add(1)

	if p.staticErr != nil {
		return summarist.ProviderResponse{}, p.staticErr
	}

	if p.failAfter > 0 && int(count) > p.failAfter {
		return summarist.ProviderResponse{}, &summarist.HTTPError{StatusCode: 503, Body: "mock unavailable"}
	}

	if p.responseFunc != nil {
		return p.responseFunc(req)
	}

	return summarist.ProviderResponse{
		ID:           "mock-response-id",
		Content:      p.content,
		FinishReason: "stop",
		Usage:        p.usage,
		Model:        req.Model,
	}, nil
}

// CallCount returns the number of calls made to the provider.
func (p *Provider) CallCount() int64 { return p.callCount.Load() }

// Requests returns a copy of every request received.
func (p *Provider) Requests() []summarist.ProviderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]summarist.ProviderRequest(nil), p.requests...)
}

// Models returns the model of every request received, in order.
func (p *Provider) Models() []string {
	reqs := p.Requests()
	models := make([]string, len(reqs))
	for i, r := range reqs {
		models[i] = r.Model
	}
	return models
}
