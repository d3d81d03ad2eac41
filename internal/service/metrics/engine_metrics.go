package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	FetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sigpulse",
			Subsystem: "consensus",
			Name:      "fetch_latency_seconds",
			Help:      "Latency of timeframe trend fetches",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.08, 0.1, 0.16, 0.25, 0.5, 1},
		},
		[]string{"timeframe"},
	)

	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigpulse",
			Subsystem: "consensus",
			Name:      "fetch_errors_total",
			Help:      "Failed timeframe fetches by timeframe",
		},
		[]string{"timeframe"},
	)

	FetchTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sigpulse",
			Subsystem: "consensus",
			Name:      "fetch_timeouts_total",
			Help:      "Evaluations that hit the shared fetch timeout",
		},
	)

	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigpulse",
			Subsystem: "consensus",
			Name:      "cache_events_total",
			Help:      "Snapshot cache hits, misses and expirations",
		},
		[]string{"event"},
	)

	Evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigpulse",
			Subsystem: "pipeline",
			Name:      "evaluations_total",
			Help:      "Signal evaluations by outcome",
		},
		[]string{"outcome"},
	)

	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sigpulse",
			Subsystem: "pipeline",
			Name:      "evaluation_duration_seconds",
			Help:      "End-to-end signal evaluation duration",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.08, 0.1, 0.16, 0.25, 0.5},
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(FetchLatency, FetchErrors, FetchTimeouts, CacheEvents, Evaluations, EvaluationDuration)
	})
}
