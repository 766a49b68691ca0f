package summarist

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrNoProviders        = errors.New("summarist: no providers configured")
	ErrQuotaExceeded      = errors.New("summarist: quota exceeded")
	ErrTemplate           = errors.New("summarist: template error")
	ErrMetadataUnreadable = errors.New("summarist: metadata unreadable")
)

// Provider call failures. Their text ends up in Outcome reasons as
// "{name} failed: {detail}", so they carry no package prefix.
var (
	ErrTransport         = errors.New("network error")
	ErrProtocol          = errors.New("API error")
	ErrMalformedResponse = errors.New("unexpected API response format")
	ErrUnknownAdapter    = errors.New("unknown adapter")
	ErrCredential        = errors.New("cannot resolve credential")
)

// HTTPError is a non-2xx response from a provider.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Is makes every HTTPError match ErrProtocol.
func (e *HTTPError) Is(target error) bool {
	return target == ErrProtocol
}

// ProviderError wraps an error with the provider it came from.
type ProviderError struct {
	Err        error
	ProviderID string
	Model      string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("summarist: provider=%s model=%s: %v", e.ProviderID, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsQuotaExceeded reports whether err is a quota skip.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// IsCallFailure returns true for per-provider call failures that fall through
// to the next provider.
func IsCallFailure(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrProtocol) ||
		errors.Is(err, ErrMalformedResponse)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
