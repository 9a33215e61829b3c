package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kojaewoong0504/VibeMusic-sub000/metric"
)

// Metrics holds Prometheus metrics for the coordinator
type Metrics struct {
	deliveries        prometheus.Counter
	deliveriesSkipped prometheus.Counter
	brokerEvents      *prometheus.CounterVec
	bridgePublishes   prometheus.Counter
	bridgeFailures    prometheus.Counter
}

// newMetrics creates and registers coordinator metrics
func newMetrics(registry *metric.Registry, componentName string) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "coordinator",
			Name:        "deliveries_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Typing patterns delivered to the analyzer",
		}),
		deliveriesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "coordinator",
			Name:        "deliveries_skipped_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Delivery ticks skipped because the socket was not open",
		}),
		brokerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "coordinator",
			Name:        "broker_events_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Events published on the in-process broker",
		}, []string{"event"}),
		bridgePublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "coordinator",
			Name:        "bridge_publishes_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Messages republished on the NATS bridge",
		}),
		bridgeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "coordinator",
			Name:        "bridge_failures_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "NATS bridge publish failures",
		}),
	}

	_ = registry.RegisterCounter(componentName, "deliveries", m.deliveries)
	_ = registry.RegisterCounter(componentName, "deliveries_skipped", m.deliveriesSkipped)
	_ = registry.RegisterCounterVec(componentName, "broker_events", m.brokerEvents)
	_ = registry.RegisterCounter(componentName, "bridge_publishes", m.bridgePublishes)
	_ = registry.RegisterCounter(componentName, "bridge_failures", m.bridgeFailures)

	return m
}
