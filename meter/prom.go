package meter

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ineyio/summarist"
)

// PromMeter exports failover events as Prometheus metrics.
type PromMeter struct {
	skips    *prometheus.CounterVec
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
}

var _ summarist.Meter = (*PromMeter)(nil)

// NewPromMeter creates the collectors and registers them with reg.
func NewPromMeter(reg prometheus.Registerer) (*PromMeter, error) {
	m := &PromMeter{
		skips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "summarist",
				Name:      "provider_skips_total",
				Help:      "Providers skipped because their daily quota was spent",
			},
			[]string{"provider"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "summarist",
				Name:      "provider_requests_total",
				Help:      "Provider calls by result",
			},
			[]string{"provider", "model", "status", "error_type"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "summarist",
				Name:      "provider_request_duration_seconds",
				Help:      "Provider call duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"provider", "model"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "summarist",
				Name:      "provider_tokens_total",
				Help:      "Tokens consumed by successful calls",
			},
			[]string{"provider", "type"},
		),
	}

	for _, c := range []prometheus.Collector{m.skips, m.requests, m.duration, m.tokens} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PromMeter) OnSkip(e summarist.SkipEvent) {
	m.skips.WithLabelValues(e.ProviderID).Inc()
}

func (m *PromMeter) OnRoute(summarist.RouteEvent) {}

func (m *PromMeter) OnResult(e summarist.ResultEvent) {
	m.duration.WithLabelValues(e.ProviderID, e.Model).Observe(e.Duration.Seconds())
	if e.Success {
		m.requests.WithLabelValues(e.ProviderID, e.Model, "success", "").Inc()
		m.tokens.WithLabelValues(e.ProviderID, "prompt").Add(float64(e.Usage.PromptTokens))
		m.tokens.WithLabelValues(e.ProviderID, "completion").Add(float64(e.Usage.CompletionTokens))
		return
	}
	m.requests.WithLabelValues(e.ProviderID, e.Model, "error", errorType(e.Error)).Inc()
}

func errorType(err error) string {
	switch {
	case errors.Is(err, summarist.ErrProtocol):
		return "http"
	case errors.Is(err, summarist.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, summarist.ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
