package summarist

import "context"

// Provider is the interface that wire adapters must implement. Adapters are
// stateless with respect to configuration: endpoint, model and credential
// arrive with every request.
type Provider interface {
	// Name returns the adapter identifier (e.g. "openai-compat").
	Name() string

	// ChatCompletion performs a synchronous chat completion.
	ChatCompletion(ctx context.Context, req ProviderRequest) (ProviderResponse, error)
}

// ProviderRequest is the request sent to a provider adapter.
type ProviderRequest struct {
	Endpoint string
	APIKey   string
	Model    string
	Messages []Message

	Temperature *float64
	MaxTokens   *int
}

// ProviderResponse is the response from a provider adapter.
type ProviderResponse struct {
	ID           string
	Content      string
	FinishReason string
	Usage        Usage
	Model        string
}
