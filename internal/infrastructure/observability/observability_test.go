package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestPipelineMetrics_CountsOutcomes(t *testing.T) {
	m := NewPipelineMetrics()

	m.IngestOutcome("telegram", "inserted")
	m.IngestOutcome("telegram", "inserted")
	m.IngestOutcome("telegram", "skipped")
	m.EnrichOutcome("exhausted")
	m.ExtractionFallback()
	m.SourceFetched("curated", 120*time.Millisecond, nil)
	m.SourceFetched("curated", 10*time.Millisecond, errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingestTotal.WithLabelValues("telegram", "inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestTotal.WithLabelValues("telegram", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.enrichTotal.WithLabelValues("exhausted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractionFail))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchErrors.WithLabelValues("curated")))
	assert.Greater(t, testutil.ToFloat64(m.lastSuccessTS.WithLabelValues("curated")), 0.0)
}

func TestPipelineMetrics_EventDropped(t *testing.T) {
	m := NewPipelineMetrics()

	m.EventDropped("fundraise:updates")
	m.EventDropped("fundraise:updates")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsDropped.WithLabelValues("fundraise:updates")))
}

func TestPipelineMetrics_Handler(t *testing.T) {
	m := NewPipelineMetrics()
	m.IngestOutcome("csv", "merged")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `fundraise_ingest_items_total{outcome="merged",source="csv"} 1`)
}

func TestLoggerFromContext_WithoutSpan(t *testing.T) {
	InitLogger("test", "production")
	logger := LoggerFromContext(context.Background())
	require.NotNil(t, logger)

	// log.Ctx on a context without a logger falls back to the global one
	assert.NotEqual(t, zerolog.Disabled, log.Ctx(context.Background()).GetLevel())
}

func TestSeverityFor(t *testing.T) {
	sev, text := severityFor(zerolog.WarnLevel)
	assert.Equal(t, otellog.SeverityWarn, sev)
	assert.Equal(t, "WARN", text)

	sev, _ = severityFor(zerolog.NoLevel)
	assert.Equal(t, otellog.SeverityUndefined, sev)
}

func TestInitMetrics_CacheCountersUseKind(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	metrics, err := InitMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	RecordCacheHit(ctx, metrics, "fundraise:list")
	RecordCacheHit(ctx, metrics, "fundraise:list")
	RecordCacheMiss(ctx, metrics, "fundraise:slug")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	hits := sumFor(t, rm, "fundraise.cache.hit.count")
	require.Len(t, hits.DataPoints, 1)
	assert.Equal(t, int64(2), hits.DataPoints[0].Value)
	kind, ok := hits.DataPoints[0].Attributes.Value(attribute.Key("cache.kind"))
	require.True(t, ok)
	assert.Equal(t, "fundraise:list", kind.AsString())

	misses := sumFor(t, rm, "fundraise.cache.miss.count")
	require.Len(t, misses.DataPoints, 1)
	assert.Equal(t, int64(1), misses.DataPoints[0].Value)
}

func TestRecordLLMRequest_CountsErrorsPerProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	ctx := context.Background()
	RecordLLMRequest(ctx, "openai", "gpt-4o-mini", 200, 40*time.Millisecond, nil)
	RecordLLMRequest(ctx, "openai", "gpt-4o-mini", 500, 10*time.Millisecond, errors.New("status 500"))
	RecordLLMRateLimitWait(ctx, "openai", "gpt-4o-mini", 5*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	requests := sumFor(t, rm, "ai.request.count")
	assert.Len(t, requests.DataPoints, 2)

	failures := sumFor(t, rm, "ai.request.errors")
	require.Len(t, failures.DataPoints, 1)
	assert.Equal(t, int64(1), failures.DataPoints[0].Value)
	provider, ok := failures.DataPoints[0].Attributes.Value(attribute.Key("ai.provider"))
	require.True(t, ok)
	assert.Equal(t, "openai", provider.AsString())
	status, ok := failures.DataPoints[0].Attributes.Value(attribute.Key("http.status_code"))
	require.True(t, ok)
	assert.Equal(t, int64(500), status.AsInt64())
}

func TestRecordHelpers_NilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordCacheHit(ctx, nil, "fundraise:list")
		RecordCacheMiss(ctx, nil, "fundraise:list")
		RecordDBMetric(ctx, nil, "fundraise.list", time.Millisecond)
		RecordRequestMetric(ctx, nil, "GET", "/api/fundraises", 200, time.Millisecond)
	})
}

func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok, name)
				return sum
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Sum[int64]{}
}
