package summarist

import "time"

// Meter observes failover events for monitoring/logging.
type Meter interface {
	// OnSkip is called when a provider is skipped for quota.
	OnSkip(event SkipEvent)

	// OnRoute is called before a provider call is issued.
	OnRoute(event RouteEvent)

	// OnResult is called when a provider call returns.
	OnResult(event ResultEvent)
}

// SkipEvent describes a provider skipped because its daily quota is spent.
type SkipEvent struct {
	ProviderID string
	Name       string
	Limit      int64
}

// RouteEvent describes an attempt about to be made.
type RouteEvent struct {
	ProviderID  string
	Name        string
	Model       string
	AttemptNum  int
	EstimatedIn int64
}

// ResultEvent describes the outcome of a provider call.
type ResultEvent struct {
	ProviderID string
	Name       string
	Model      string
	Success    bool
	Duration   time.Duration
	Usage      Usage
	Error      error
}

// noopMeter is a meter that does nothing.
type noopMeter struct{}

func (noopMeter) OnSkip(SkipEvent)     {}
func (noopMeter) OnRoute(RouteEvent)   {}
func (noopMeter) OnResult(ResultEvent) {}
