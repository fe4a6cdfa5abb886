package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ModelKindQuery    = "query"
	ModelKindAnalysis = "analysis"

	CacheHit       = "hit"
	CacheMiss      = "miss"
	CacheRemoteHit = "remote_hit"
)

var (
	modelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckllm_model_requests_total",
			Help: "Total number of language model requests by prompt kind and outcome.",
		},
		[]string{"kind", "status"},
	)
	modelRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckllm_model_request_duration_seconds",
			Help:    "Language model request latency by prompt kind.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"kind"},
	)
	extractionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duckllm_extraction_failures_total",
			Help: "Total number of model responses without a usable answer block.",
		},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckllm_query_executions_total",
			Help: "Total number of generated SQL executions by outcome.",
		},
		[]string{"status"},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckllm_query_duration_seconds",
			Help:    "Generated SQL execution latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckllm_cache_lookups_total",
			Help: "Total number of columnar cache lookups by result.",
		},
		[]string{"result"},
	)
	cacheConversionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckllm_cache_conversion_seconds",
			Help:    "Time spent converting delimited text files into cache artifacts.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(
		modelRequestsTotal,
		modelRequestDurationSeconds,
		extractionFailuresTotal,
		queryExecutionsTotal,
		queryDurationSeconds,
		cacheLookupsTotal,
		cacheConversionSeconds,
	)
}

func ObserveModelRequest(kind string, err error, elapsed time.Duration) {
	modelRequestsTotal.WithLabelValues(kind, statusLabel(err)).Inc()
	modelRequestDurationSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func IncrementExtractionFailure() {
	extractionFailuresTotal.Inc()
}

func ObserveQueryExecution(err error, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(statusLabel(err)).Inc()
	queryDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

func ObserveCacheConversion(elapsed time.Duration) {
	cacheConversionSeconds.Observe(elapsed.Seconds())
}

// WriteMetricsFile dumps the default registry in text exposition format, for
// the node exporter textfile collector.
func WriteMetricsFile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics file %q: %w", path, err)
	}
	return nil
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
