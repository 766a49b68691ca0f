package meter

import (
	"log/slog"

	"github.com/ineyio/summarist"
)

// LogMeter logs failover events using slog. API keys never reach a meter.
type LogMeter struct {
	Logger *slog.Logger
}

var _ summarist.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnSkip(e summarist.SkipEvent) {
	m.Logger.Info("skip",
		"provider", e.ProviderID,
		"name", e.Name,
		"daily_limit", e.Limit,
		"reason", "quota exceeded",
	)
}

func (m *LogMeter) OnRoute(e summarist.RouteEvent) {
	m.Logger.Info("route",
		"provider", e.ProviderID,
		"name", e.Name,
		"model", e.Model,
		"attempt", e.AttemptNum,
		"estimated_tokens", e.EstimatedIn,
	)
}

func (m *LogMeter) OnResult(e summarist.ResultEvent) {
	if e.Success {
		m.Logger.Info("result",
			"provider", e.ProviderID,
			"model", e.Model,
			"duration_ms", e.Duration.Milliseconds(),
			"prompt_tokens", e.Usage.PromptTokens,
			"completion_tokens", e.Usage.CompletionTokens,
		)
	} else {
		m.Logger.Warn("result_error",
			"provider", e.ProviderID,
			"model", e.Model,
			"duration_ms", e.Duration.Milliseconds(),
			"error", e.Error,
		)
	}
}
