package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the compile counters exported on /metrics.
type Metrics struct {
	Compilations    *prometheus.CounterVec
	Segments        *prometheus.CounterVec
	Calls           *prometheus.CounterVec
	Confidence      prometheus.Histogram
	CompileLatency  prometheus.Histogram
	CacheHits       prometheus.Counter
	FallbackResults *prometheus.CounterVec
}

// NewMetrics registers the metrics with reg; pass a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Compilations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intentc_compilations_total",
			Help: "Compiled utterances by decision and source",
		}, []string{"decision", "source"}),

		Segments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intentc_segments_total",
			Help: "Segments by outcome status",
		}, []string{"status"}),

		Calls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intentc_calls_total",
			Help: "Emitted tool calls by tool",
		}, []string{"tool"}),

		Confidence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "intentc_confidence",
			Help:    "Confidence of rule-based compiles",
			Buckets: []float64{0, 0.25, 0.5, 0.67, 0.75, 0.9, 0.99, 1},
		}),

		CompileLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "intentc_compile_duration_seconds",
			Help:    "End-to-end compile latency including fallback",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.1, 1, 5, 10},
		}),

		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "intentc_cache_hits_total",
			Help: "Compiles served from the result cache",
		}),

		// result: used, rejected, error
		FallbackResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intentc_fallback_total",
			Help: "Fallback model rounds by result",
		}, []string{"result"}),
	}
}
