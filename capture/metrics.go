package capture

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kojaewoong0504/VibeMusic-sub000/metric"
)

// Metrics holds Prometheus metrics for the capture engine
type Metrics struct {
	eventsProcessed prometheus.Counter
	ingestLatency   prometheus.Histogram
	latencyBreaches prometheus.Counter
	analysisRuns    *prometheus.CounterVec
	workerFallbacks prometheus.Counter
}

// newMetrics creates and registers capture engine metrics
func newMetrics(registry *metric.Registry, componentName string) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		eventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "capture",
			Name:        "events_processed_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Total key events accepted by the engine",
		}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "vibemusic",
			Subsystem:   "capture",
			Name:        "ingest_latency_seconds",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Latency from event ingestion to ring buffer insertion",
			Buckets:     []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		latencyBreaches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "capture",
			Name:        "latency_breaches_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Ingestion latencies exceeding the configured ceiling",
		}),
		analysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "capture",
			Name:        "analysis_runs_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Pattern analysis passes by execution mode",
		}, []string{"mode"}),
		workerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "capture",
			Name:        "worker_fallbacks_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Analysis passes that fell back to inline execution",
		}),
	}

	_ = registry.RegisterCounter(componentName, "events_processed", m.eventsProcessed)
	_ = registry.RegisterHistogram(componentName, "ingest_latency", m.ingestLatency)
	_ = registry.RegisterCounter(componentName, "latency_breaches", m.latencyBreaches)
	_ = registry.RegisterCounterVec(componentName, "analysis_runs", m.analysisRuns)
	_ = registry.RegisterCounter(componentName, "worker_fallbacks", m.workerFallbacks)

	return m
}
