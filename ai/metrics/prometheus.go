// Package metrics provides Prometheus metrics export for feedback analysis.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/feedbacksense/ai/core/llm"
)

const namespace = "feedbacksense"

// PrometheusExporter exports analysis metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Analysis metrics
	analyses         *prometheus.CounterVec
	analysisLatency  *prometheus.HistogramVec
	pipelineFallback prometheus.Counter

	// Pipeline metrics
	nodeLatency *prometheus.HistogramVec
	nodeErrors  *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec

	// Cache metrics
	cacheRequests *prometheus.CounterVec

	// Recorder metrics
	recorderErrors    *prometheus.CounterVec
	recorderQueueSize prometheus.Gauge
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64

	// RuntimeCollectors adds the Go runtime and process collectors.
	RuntimeCollectors bool
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets:    []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		RuntimeCollectors: true,
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.analyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of completed feedback analyses",
		},
		[]string{"mode", "category", "source"},
	)

	e.analysisLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_latency_seconds",
			Help:      "Feedback analysis latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"mode"},
	)

	e.pipelineFallback = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_fallback_total",
			Help:      "Total number of pipeline failures answered with the fallback analysis",
		},
	)

	e.nodeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_node_latency_seconds",
			Help:      "Pipeline node latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"node"},
	)

	e.nodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_node_errors_total",
			Help:      "Total number of failed pipeline node runs",
		},
		[]string{"node"},
	)

	e.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "type"},
	)

	e.cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Total number of analysis cache lookups",
		},
		[]string{"backend", "result"},
	)

	e.recorderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorder_errors_total",
			Help:      "Total number of failed recorder sink writes",
		},
		[]string{"sink"},
	)

	e.recorderQueueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recorder_queue_size",
			Help:      "Number of analyses waiting to be recorded",
		},
	)

	registry.MustRegister(
		e.analyses,
		e.analysisLatency,
		e.pipelineFallback,
		e.nodeLatency,
		e.nodeErrors,
		e.llmTokens,
		e.cacheRequests,
		e.recorderErrors,
		e.recorderQueueSize,
	)
	if cfg.RuntimeCollectors {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return e
}

// RecordAnalysis records a completed analysis.
func (e *PrometheusExporter) RecordAnalysis(mode, category, source string, latency time.Duration) {
	e.analyses.WithLabelValues(mode, category, source).Inc()
	e.analysisLatency.WithLabelValues(mode).Observe(latency.Seconds())
}

// RecordFallback records a pipeline failure answered with the fallback.
func (e *PrometheusExporter) RecordFallback() {
	e.pipelineFallback.Inc()
}

// RecordCacheRequest records a cache lookup. Result is hit, miss or error.
func (e *PrometheusExporter) RecordCacheRequest(backend, result string) {
	e.cacheRequests.WithLabelValues(backend, result).Inc()
}

// RecordRecorderError records a failed sink write.
func (e *PrometheusExporter) RecordRecorderError(sink string) {
	e.recorderErrors.WithLabelValues(sink).Inc()
}

// SetRecorderQueueSize sets the recorder backlog.
func (e *PrometheusExporter) SetRecorderQueueSize(n int) {
	e.recorderQueueSize.Set(float64(n))
}

// ObserveNode records one pipeline node run.
func (e *PrometheusExporter) ObserveNode(node string, duration time.Duration, err error) {
	e.nodeLatency.WithLabelValues(node).Observe(duration.Seconds())
	if err != nil {
		e.nodeErrors.WithLabelValues(node).Inc()
	}
}

// ObserveLLMCall records the token usage of one LLM call.
func (e *PrometheusExporter) ObserveLLMCall(model string, stats *llm.LLMCallStats) {
	if stats == nil {
		return
	}
	e.llmTokens.WithLabelValues(model, "prompt").Add(float64(stats.PromptTokens))
	e.llmTokens.WithLabelValues(model, "completion").Add(float64(stats.CompletionTokens))
	if stats.CacheReadTokens > 0 {
		e.llmTokens.WithLabelValues(model, "cache_read").Add(float64(stats.CacheReadTokens))
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Handler().ServeHTTP(w, r)
}

// Registry returns the Prometheus registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}
