package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bitebase_nlq_query_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"mode"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitebase_nlq_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"intent", "status"},
	)

	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bitebase_nlq_execution_duration_seconds",
			Help:    "Warehouse SQL execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"status"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bitebase_nlq_confidence_score",
			Help:    "Overall confidence scores of processed queries",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	ResultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bitebase_nlq_result_rows",
			Help:    "Number of rows returned per executed query",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitebase_nlq_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"backend"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitebase_nlq_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"backend"},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitebase_nlq_feedback_total",
			Help: "Total feedback submissions accepted",
		},
		[]string{"helpful"},
	)

	FeedbackQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bitebase_nlq_feedback_queue_depth",
			Help: "Feedback events waiting to be applied",
		},
	)

	HistoryWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bitebase_nlq_history_write_failures_total",
			Help: "History entries that could not be durably recorded",
		},
	)

	RetentionDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bitebase_nlq_retention_deleted_total",
			Help: "History entries removed by scheduled retention",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(ExecutionDuration)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(ResultRows)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(FeedbackTotal)
	prometheus.MustRegister(FeedbackQueueDepth)
	prometheus.MustRegister(RetentionDeleted)
	prometheus.MustRegister(HistoryWriteFailures)
}

// Handler serves the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
