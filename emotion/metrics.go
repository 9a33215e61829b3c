package emotion

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kojaewoong0504/VibeMusic-sub000/metric"
)

// Metrics holds Prometheus metrics for the aggregator
type Metrics struct {
	samplesIngested prometheus.Counter
	currentLevels   *prometheus.GaugeVec
	historySize     prometheus.Gauge
}

// newMetrics creates and registers aggregator metrics
func newMetrics(registry *metric.Registry, componentName string) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		samplesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "emotion",
			Name:        "samples_ingested_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Emotion samples accepted into the history",
		}),
		currentLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "vibemusic",
			Subsystem:   "emotion",
			Name:        "current_level",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Latest value per emotion channel",
		}, []string{"channel"}),
		historySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "vibemusic",
			Subsystem:   "emotion",
			Name:        "history_size",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Samples currently retained",
		}),
	}

	_ = registry.RegisterCounter(componentName, "samples_ingested", m.samplesIngested)
	_ = registry.RegisterGaugeVec(componentName, "current_levels", m.currentLevels)
	_ = registry.RegisterGauge(componentName, "history_size", m.historySize)

	return m
}

func (m *Metrics) observe(s Sample, historySize int) {
	if m == nil {
		return
	}
	m.samplesIngested.Inc()
	m.currentLevels.WithLabelValues("energy").Set(s.Energy)
	m.currentLevels.WithLabelValues("valence").Set(s.Valence)
	m.currentLevels.WithLabelValues("tension").Set(s.Tension)
	m.currentLevels.WithLabelValues("focus").Set(s.Focus)
	m.currentLevels.WithLabelValues("confidence").Set(s.Confidence)
	m.historySize.Set(float64(historySize))
}
