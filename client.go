package summarist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
	defaultTimeout     = 60 * time.Second
)

// Client generates text by trying configured providers in priority order
// until one succeeds.
type Client struct {
	providers   []ProviderConfig
	adapters    map[string]Provider
	ledger      *QuotaLedger
	meter       Meter
	secrets     SecretResolver
	logger      *slog.Logger
	temperature float64
	maxTokens   int
	timeout     time.Duration
	pacing      bool
	limiters    map[string]*rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithMeter sets the meter.
func WithMeter(m Meter) Option {
	return func(c *Client) { c.meter = m }
}

// WithSecrets sets the credential resolver.
func WithSecrets(s SecretResolver) Option {
	return func(c *Client) { c.secrets = s }
}

// WithLogger sets the logger used for ledger persistence warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTemperature sets the sampling temperature sent to providers.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithMaxTokens sets the token budget used when a request does not carry one.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithTimeout bounds a single provider call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimits paces calls per provider according to RatePerMinute.
func WithRateLimits(enabled bool) Option {
	return func(c *Client) { c.pacing = enabled }
}

// NewClient creates a Client. adapters are matched to providers by
// ProviderConfig.Adapter; an empty Adapter selects "openai-compat".
// A nil ledger tracks quota in memory only.
func NewClient(providers []ProviderConfig, ledger *QuotaLedger, adapters []Provider, opts ...Option) (*Client, error) {
	if len(providers) > 0 && len(adapters) == 0 {
		return nil, fmt.Errorf("summarist: at least one adapter is required")
	}

	adapterMap := make(map[string]Provider, len(adapters))
	for _, a := range adapters {
		adapterMap[a.Name()] = a
	}

	if ledger == nil {
		var err error
		ledger, err = NewQuotaLedger(context.Background(), providers, nil)
		if err != nil {
			return nil, err
		}
	}

	c := &Client{
		providers:   append([]ProviderConfig(nil), providers...),
		adapters:    adapterMap,
		ledger:      ledger,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		timeout:     defaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Apply defaults after options.
	if c.meter == nil {
		c.meter = noopMeter{}
	}
	if c.secrets == nil {
		c.secrets = DefaultSecrets()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.pacing {
		c.limiters = make(map[string]*rate.Limiter)
		for _, p := range c.providers {
			if p.RatePerMinute > 0 {
				c.limiters[p.ID] = rate.NewLimiter(rate.Limit(p.RatePerMinute/60), 1)
			}
		}
	}

	return c, nil
}

// Providers returns the configured providers in priority order.
func (c *Client) Providers() []ProviderConfig {
	return append([]ProviderConfig(nil), c.providers...)
}

// Ledger returns the quota ledger the client consults.
func (c *Client) Ledger() *QuotaLedger { return c.ledger }

// Generate tries each provider in priority order. Providers without quota
// left are skipped; a failed call falls through to the next provider. The
// first success is returned immediately. When nothing succeeds, the failure
// reason lists every skip and error.
func (c *Client) Generate(ctx context.Context, req GenerationRequest) Outcome {
	if len(c.providers) == 0 {
		return Failure("no providers configured")
	}

	messages := req.Messages()
	estimated := EstimateTokens(messages)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	var attempts []Attempt
	calls := 0
	for _, p := range c.providers {
		reservation, err := c.ledger.Reserve(ctx, p.ID, 1)
		if err != nil && !IsQuotaExceeded(err) {
			c.logger.Warn("quota store unavailable", "provider", p.ID, "error", err)
			attempts = append(attempts, Attempt{ProviderID: p.ID, Name: p.DisplayName(), Error: err.Error()})
			continue
		}
		if err != nil {
			c.meter.OnSkip(SkipEvent{ProviderID: p.ID, Name: p.DisplayName(), Limit: p.DailyLimit})
			attempts = append(attempts, Attempt{ProviderID: p.ID, Name: p.DisplayName(), Skipped: true})
			continue
		}

		calls++
		c.meter.OnRoute(RouteEvent{
			ProviderID:  p.ID,
			Name:        p.DisplayName(),
			Model:       p.Model,
			AttemptNum:  calls,
			EstimatedIn: estimated,
		})

		start := time.Now()
		resp, err := c.call(ctx, p, messages, maxTokens)
		duration := time.Since(start)

		if err != nil {
			if rbErr := c.ledger.Rollback(context.WithoutCancel(ctx), reservation); rbErr != nil {
				c.logger.Warn("quota reservation not released", "provider", p.ID, "error", rbErr)
			}
			c.meter.OnResult(ResultEvent{
				ProviderID: p.ID,
				Name:       p.DisplayName(),
				Model:      p.Model,
				Success:    false,
				Duration:   duration,
				Error:      &ProviderError{Err: err, ProviderID: p.ID, Model: p.Model},
			})
			attempts = append(attempts, Attempt{ProviderID: p.ID, Name: p.DisplayName(), Error: err.Error()})
			continue
		}

		// Success.
		if err := c.ledger.Commit(context.WithoutCancel(ctx), reservation); err != nil {
			c.logger.Warn("quota state not persisted", "provider", p.ID, "error", err)
		}
		c.meter.OnResult(ResultEvent{
			ProviderID: p.ID,
			Name:       p.DisplayName(),
			Model:      p.Model,
			Success:    true,
			Duration:   duration,
			Usage:      resp.Usage,
		})

		out := Success(resp.Content)
		out.Provider = p.ID
		out.Usage = resp.Usage
		out.Attempts = attempts
		return out
	}

	out := Failure(failureReason(attempts))
	out.Attempts = attempts
	return out
}

func (c *Client) call(ctx context.Context, p ProviderConfig, messages []Message, maxTokens int) (ProviderResponse, error) {
	name := p.Adapter
	if name == "" {
		name = AdapterOpenAICompat
	}
	adapter, ok := c.adapters[name]
	if !ok {
		return ProviderResponse{}, fmt.Errorf("%w %q", ErrUnknownAdapter, name)
	}

	apiKey, err := c.secrets.Resolve(p.APIKey)
	if err != nil {
		return ProviderResponse{}, err
	}

	if lim := c.limiters[p.ID]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return ProviderResponse{}, fmt.Errorf("%w: rate limiter: %v", ErrTransport, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return adapter.ChatCompletion(callCtx, ProviderRequest{
		Endpoint:    p.Endpoint,
		APIKey:      apiKey,
		Model:       p.Model,
		Messages:    messages,
		Temperature: Float64Ptr(c.temperature),
		MaxTokens:   IntPtr(maxTokens),
	})
}
