package summarist

import (
	"fmt"
	"strings"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationRequest is a rendered prompt ready to be sent to a provider.
// An empty System produces a single user message.
type GenerationRequest struct {
	System    string
	User      string
	MaxTokens int // 0 = client default
}

// Messages renders the request into chat messages.
func (r GenerationRequest) Messages() []Message {
	if r.System == "" {
		return []Message{{Role: "user", Content: r.User}}
	}
	return []Message{
		{Role: "system", Content: r.System},
		{Role: "user", Content: r.User},
	}
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens" yaml:"total_tokens"`
}

// OutcomeKind tags an Outcome.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
)

// Outcome is the result of generating content for one work item.
// Exactly one of Content (success) or Reason (failure) is meaningful.
type Outcome struct {
	Kind     OutcomeKind `yaml:"kind"`
	Content  string      `yaml:"content,omitempty"`
	Reason   string      `yaml:"reason,omitempty"`
	Provider string      `yaml:"provider,omitempty"`
	Usage    Usage       `yaml:"usage,omitempty"`
	Attempts []Attempt   `yaml:"attempts,omitempty"`
}

// Success returns a successful outcome.
func Success(content string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Content: content}
}

// Failure returns a failed outcome.
func Failure(reason string) Outcome {
	return Outcome{Kind: OutcomeFailure, Reason: reason}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Kind == OutcomeSuccess }

// Attempt records what happened with a single provider during Generate.
type Attempt struct {
	ProviderID string `yaml:"provider_id"`
	Name       string `yaml:"name"`
	Skipped    bool   `yaml:"skipped,omitempty"`
	Error      string `yaml:"error,omitempty"`
}

func (a Attempt) String() string {
	if a.Skipped {
		return fmt.Sprintf("%s skipped: quota exceeded", a.Name)
	}
	return fmt.Sprintf("%s failed: %s", a.Name, a.Error)
}

// failureReason joins every attempt into one diagnostic message.
func failureReason(attempts []Attempt) string {
	lines := make([]string, len(attempts))
	for i, a := range attempts {
		lines[i] = a.String()
	}
	return "all configured providers failed:\n" + strings.Join(lines, "\n")
}

// IntPtr returns a pointer to the given int.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to the given float64.
func Float64Ptr(v float64) *float64 { return &v }
