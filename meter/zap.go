package meter

import (
	"go.uber.org/zap"

	"github.com/ineyio/summarist"
)

// ZapMeter logs failover events with a zap logger.
type ZapMeter struct {
	Logger *zap.Logger
}

var _ summarist.Meter = (*ZapMeter)(nil)

// NewZapMeter creates a ZapMeter. A nil logger is replaced by zap.NewNop().
func NewZapMeter(logger *zap.Logger) *ZapMeter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapMeter{Logger: logger}
}

func (m *ZapMeter) OnSkip(e summarist.SkipEvent) {
	m.Logger.Info("skip",
		zap.String("provider", e.ProviderID),
		zap.String("name", e.Name),
		zap.Int64("daily_limit", e.Limit),
	)
}

func (m *ZapMeter) OnRoute(e summarist.RouteEvent) {
	m.Logger.Info("route",
		zap.String("provider", e.ProviderID),
		zap.String("model", e.Model),
		zap.Int("attempt", e.AttemptNum),
		zap.Int64("estimated_tokens", e.EstimatedIn),
	)
}

func (m *ZapMeter) OnResult(e summarist.ResultEvent) {
	if e.Success {
		m.Logger.Info("result",
			zap.String("provider", e.ProviderID),
			zap.String("model", e.Model),
			zap.Duration("duration", e.Duration),
			zap.Int64("total_tokens", e.Usage.TotalTokens),
		)
		return
	}
	m.Logger.Warn("result_error",
		zap.String("provider", e.ProviderID),
		zap.String("model", e.Model),
		zap.Duration("duration", e.Duration),
		zap.Error(e.Error),
	)
}

// NewZapLogger builds a zap logger: "json" selects the production encoder,
// anything else the development console encoder.
func NewZapLogger(format, level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if format == "json" {
		cfg = zap.NewProductionConfig()
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}
