package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type llmMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var (
	llmMetricsOnce sync.Once
	llmInstruments *llmMetrics
)

// ensureLLMMetrics creates the instruments on the global meter provider. nil
// means registration failed and recording is skipped.
func ensureLLMMetrics() *llmMetrics {
	llmMetricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName + "/llm")
		m := &llmMetrics{}

		var errs [4]error
		m.requestCount, errs[0] = meter.Int64Counter("ai.request.count",
			metric.WithDescription("Extraction requests sent to an LLM provider"))
		m.requestDuration, errs[1] = meter.Float64Histogram("ai.request.duration",
			metric.WithDescription("Extraction request duration in milliseconds"), metric.WithUnit("ms"))
		m.requestErrors, errs[2] = meter.Int64Counter("ai.request.errors",
			metric.WithDescription("Failed extraction requests"))
		m.rateLimitWait, errs[3] = meter.Float64Histogram("ai.rate_limit.wait",
			metric.WithDescription("Time spent waiting on the client-side rate limiter in milliseconds"), metric.WithUnit("ms"))

		for _, err := range errs {
			if err != nil {
				return
			}
		}
		llmInstruments = m
	})
	return llmInstruments
}

func llmAttrs(provider, model string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("ai.provider", provider),
		attribute.String("ai.model", model),
	}
}

// RecordLLMRequest records one extraction call. statusCode is the HTTP status
// when the provider exposes it, 0 otherwise.
func RecordLLMRequest(ctx context.Context, provider, model string, statusCode int, duration time.Duration, err error) {
	m := ensureLLMMetrics()
	if m == nil {
		return
	}

	attrs := llmAttrs(provider, model)
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}
	opt := metric.WithAttributes(attrs...)

	m.requestCount.Add(ctx, 1, opt)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), opt)
	if err != nil {
		m.requestErrors.Add(ctx, 1, opt)
	}
}

// RecordLLMRateLimitWait records time spent blocked on a client-side limiter
func RecordLLMRateLimitWait(ctx context.Context, provider, model string, wait time.Duration) {
	m := ensureLLMMetrics()
	if m == nil {
		return
	}
	m.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(llmAttrs(provider, model)...))
}
