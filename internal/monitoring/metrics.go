package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Evaluation metrics
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_evaluations_total",
			Help: "Total number of candidate evaluations performed",
		},
		[]string{"strategy"},
	)

	evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optimizer_evaluation_duration_seconds",
			Help:    "Distribution of single candidate evaluation durations",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Cache metrics
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_cache_hits_total",
			Help: "Evaluation cache hits by tier",
		},
		[]string{"tier"},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "optimizer_cache_misses_total",
			Help: "Evaluation cache misses across both tiers",
		},
	)

	// Session metrics
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_sessions_total",
			Help: "Optimizer sessions by terminal status",
		},
		[]string{"status"},
	)

	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optimizer_session_duration_seconds",
			Help:    "Distribution of end-to-end session durations",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(evaluationsTotal)
	prometheus.MustRegister(evaluationDuration)
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
	prometheus.MustRegister(sessionsTotal)
	prometheus.MustRegister(sessionDuration)
}

// MetricsHandler handles the Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordEvaluation records one completed candidate evaluation
func RecordEvaluation(strategy string, seconds float64) {
	evaluationsTotal.WithLabelValues(strategy).Inc()
	evaluationDuration.Observe(seconds)
}

// RecordCacheHit records an evaluation cache hit on the given tier
func RecordCacheHit(tier string) {
	cacheHitsTotal.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records an evaluation cache miss
func RecordCacheMiss() {
	cacheMissesTotal.Inc()
}

// RecordSession records a session reaching a terminal status
func RecordSession(status string, seconds float64) {
	sessionsTotal.WithLabelValues(status).Inc()
	sessionDuration.Observe(seconds)
}
