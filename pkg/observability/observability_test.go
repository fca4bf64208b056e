package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/healthfang/pkg/observability"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func TestTracingHandlerInjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "healthfang", "test", observability.ModeCLI))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "analyzing", "repository", "https://github.com/example/project")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "healthfang", record["service"])
	assert.Equal(t, "test", record["env"])
	assert.Equal(t, "cli", record["mode"])
	assert.Equal(t, "https://github.com/example/project", record["repository"])
}

func TestTracingHandlerWithoutSpan(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(observability.NewTracingHandler(slog.NewJSONHandler(&buf, nil), "healthfang", "", observability.ModeMCP))
	logger.Info("no span")

	record := decodeRecord(t, &buf)
	assert.NotContains(t, record, "trace_id")
	assert.NotContains(t, record, "env")
	assert.Equal(t, "mcp", record["mode"])
}

func TestTracingHandlerGroupKeepsServiceTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(observability.NewTracingHandler(slog.NewJSONHandler(&buf, nil), "healthfang", "", observability.ModeCLI))
	logger.WithGroup("scan").Info("page", "hits", 3)

	record := decodeRecord(t, &buf)
	assert.Equal(t, "healthfang", record["service"])
	assert.Equal(t, map[string]any{"hits": float64(3)}, record["scan"])
}

func TestNewLoggerLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogLevel = slog.LevelWarn

	logger := observability.NewLogger(&buf, cfg)
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "service=healthfang")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, observability.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, observability.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, observability.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, observability.ParseLevel("loud"))
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("novalue,=x"))
	assert.Equal(t,
		map[string]string{"api-key": "abc", "tenant": "t1"},
		observability.ParseOTLPHeaders(" api-key = abc ,tenant=t1"),
	)
}

func TestInitNoopWhenNoExporter(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	assert.Nil(t, providers.MetricsHandler)

	_, span := providers.Tracer.Start(context.Background(), "noop")
	span.End()

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestRunMetricsNilReceiver(t *testing.T) {
	t.Parallel()

	var m *observability.RunMetrics

	assert.NotPanics(t, func() {
		m.RecordEvents(context.Background(), "commit", 3)
		m.RecordRepository(context.Background(), observability.OutcomeReady)
		m.RecordAnalysis(context.Background(), time.Second)
	})
}

func TestPrometheusExposesRunMetrics(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.Prometheus = true

	providers, err := observability.Init(cfg)
	require.NoError(t, err)
	require.NotNil(t, providers.MetricsHandler)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	metrics, err := observability.NewRunMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordEvents(ctx, "commit", 5)
	metrics.RecordRepository(ctx, observability.OutcomeTimeout)
	metrics.RecordAnalysis(ctx, 2*time.Second)

	srv := httptest.NewServer(providers.MetricsHandler)
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthfang_events_processed")
	assert.Contains(t, string(body), `outcome="timeout"`)
	assert.Contains(t, string(body), "healthfang_repository_analysis_duration_seconds")
}
