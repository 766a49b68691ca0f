package meter_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ineyio/summarist"
	"github.com/ineyio/summarist/meter"
)

func emitAll(m summarist.Meter) {
	m.OnSkip(summarist.SkipEvent{ProviderID: "a", Name: "A", Limit: 10})
	m.OnRoute(summarist.RouteEvent{ProviderID: "b", Name: "B", Model: "m", AttemptNum: 1, EstimatedIn: 12})
	m.OnResult(summarist.ResultEvent{ProviderID: "b", Model: "m", Duration: time.Second,
		Error: &summarist.HTTPError{StatusCode: 502, Body: "bad gateway"}})
	m.OnRoute(summarist.RouteEvent{ProviderID: "c", Name: "C", Model: "m", AttemptNum: 2})
	m.OnResult(summarist.ResultEvent{ProviderID: "c", Model: "m", Success: true, Duration: time.Second,
		Usage: summarist.Usage{PromptTokens: 100, CompletionTokens: 40, TotalTokens: 140}})
}

func TestLogMeter(t *testing.T) {
	var buf bytes.Buffer
	m := meter.NewLogMeter(slog.New(slog.NewTextHandler(&buf, nil)))

	emitAll(m)

	out := buf.String()
	assert.Contains(t, out, "msg=skip provider=a")
	assert.Contains(t, out, `reason="quota exceeded"`)
	assert.Contains(t, out, "level=WARN msg=result_error provider=b")
	assert.Contains(t, out, "prompt_tokens=100")
	assert.Equal(t, 5, strings.Count(out, "\n"))
}

func TestZapMeter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := meter.NewZapMeter(zap.New(core))

	emitAll(m)

	require.Equal(t, 5, logs.Len())
	entries := logs.All()
	assert.Equal(t, "skip", entries[0].Message)
	assert.Equal(t, "a", entries[0].ContextMap()["provider"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, int64(140), entries[4].ContextMap()["total_tokens"])
}

func TestNewZapLogger(t *testing.T) {
	l, err := meter.NewZapLogger("json", "warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = meter.NewZapLogger("text", "loud")
	assert.Error(t, err)
}

func TestPromMeter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := meter.NewPromMeter(reg)
	require.NoError(t, err)

	emitAll(m)
	m.OnResult(summarist.ResultEvent{ProviderID: "b", Model: "m", Error: fmt.Errorf("%w: eof", summarist.ErrTransport)})
	m.OnResult(summarist.ResultEvent{ProviderID: "b", Model: "m", Error: errors.New("weird")})

	expected := `
# HELP summarist_provider_requests_total Provider calls by result
# TYPE summarist_provider_requests_total counter
summarist_provider_requests_total{error_type="",model="m",provider="c",status="success"} 1
summarist_provider_requests_total{error_type="http",model="m",provider="b",status="error"} 1
summarist_provider_requests_total{error_type="other",model="m",provider="b",status="error"} 1
summarist_provider_requests_total{error_type="transport",model="m",provider="b",status="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "summarist_provider_requests_total"))

	count, err := testutil.GatherAndCount(reg, "summarist_provider_skips_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPromMeter_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := meter.NewPromMeter(reg)
	require.NoError(t, err)

	_, err = meter.NewPromMeter(reg)
	assert.Error(t, err)
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	m := meter.Multi{
		meter.NewLogMeter(slog.New(slog.NewTextHandler(&a, nil))),
		&meter.NoopMeter{},
		meter.NewLogMeter(slog.New(slog.NewTextHandler(&b, nil))),
	}

	m.OnSkip(summarist.SkipEvent{ProviderID: "x"})

	assert.Contains(t, a.String(), "provider=x")
	assert.Contains(t, b.String(), "provider=x")
}
