package meter

import "github.com/ineyio/summarist"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ summarist.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnSkip(summarist.SkipEvent)     {}
func (m *NoopMeter) OnRoute(summarist.RouteEvent)   {}
func (m *NoopMeter) OnResult(summarist.ResultEvent) {}

// Multi fans events out to several meters.
type Multi []summarist.Meter

var _ summarist.Meter = Multi(nil)

func (m Multi) OnSkip(e summarist.SkipEvent) {
	for _, x := range m {
		x.OnSkip(e)
	}
}

func (m Multi) OnRoute(e summarist.RouteEvent) {
	for _, x := range m {
		x.OnRoute(e)
	}
}

func (m Multi) OnResult(e summarist.ResultEvent) {
	for _, x := range m {
		x.OnResult(e)
	}
}
