package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics exposes ingestion and enrichment counters in Prometheus format.
type PipelineMetrics struct {
	registry       *prometheus.Registry
	ingestTotal    *prometheus.CounterVec
	enrichTotal    *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	fetchErrors    *prometheus.CounterVec
	lastSuccessTS  *prometheus.GaugeVec
	extractionFail prometheus.Counter
	eventsDropped  *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline collectors on a fresh registry,
// alongside the Go and process collectors.
func NewPipelineMetrics() *PipelineMetrics {
	m := &PipelineMetrics{registry: prometheus.NewRegistry()}

	m.ingestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundraise",
		Name:      "ingest_items_total",
		Help:      "Raw announcements folded into the store, by source and outcome",
	}, []string{"source", "outcome"})
	m.enrichTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundraise",
		Name:      "enrichment_attempts_total",
		Help:      "Enrichment attempts by outcome",
	}, []string{"outcome"})
	m.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fundraise",
		Name:      "source_fetch_duration_seconds",
		Help:      "Time spent fetching a source feed",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})
	m.fetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundraise",
		Name:      "source_fetch_errors_total",
		Help:      "Failed source fetches",
	}, []string{"source"})
	m.lastSuccessTS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fundraise",
		Name:      "source_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful fetch",
	}, []string{"source"})
	m.extractionFail = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fundraise",
		Name:      "extraction_fallbacks_total",
		Help:      "Extractions that returned the fallback guess",
	})

	m.eventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundraise",
		Name:      "events_dropped_total",
		Help:      "Events not delivered because a subscriber buffer was full",
	}, []string{"channel"})

	m.registry.MustRegister(
		m.ingestTotal, m.enrichTotal, m.fetchDuration,
		m.fetchErrors, m.lastSuccessTS, m.extractionFail, m.eventsDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// IngestOutcome counts one ingested item
func (m *PipelineMetrics) IngestOutcome(source, outcome string) {
	m.ingestTotal.WithLabelValues(source, outcome).Inc()
}

// EnrichOutcome counts one enrichment attempt
func (m *PipelineMetrics) EnrichOutcome(outcome string) {
	m.enrichTotal.WithLabelValues(outcome).Inc()
}

// ExtractionFallback counts an extraction that fell back to the default guess
func (m *PipelineMetrics) ExtractionFallback() {
	m.extractionFail.Inc()
}

// EventDropped counts an event a slow subscriber missed
func (m *PipelineMetrics) EventDropped(channel string) {
	m.eventsDropped.WithLabelValues(channel).Inc()
}

// SourceFetched records a source fetch
func (m *PipelineMetrics) SourceFetched(source string, duration time.Duration, err error) {
	m.fetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		m.fetchErrors.WithLabelValues(source).Inc()
		return
	}
	m.lastSuccessTS.WithLabelValues(source).SetToCurrentTime()
}

// Handler serves the registry in the Prometheus exposition format
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}
