package transport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kojaewoong0504/VibeMusic-sub000/metric"
)

// Metrics holds Prometheus metrics for the session manager
type Metrics struct {
	connectionState   prometheus.Gauge
	messagesSent      *prometheus.CounterVec
	messagesReceived  *prometheus.CounterVec
	reconnectAttempts prometheus.Counter
	parseFailures     prometheus.Counter
	sendRejections    prometheus.Counter
}

// newMetrics creates and registers session manager metrics
func newMetrics(registry *metric.Registry, componentName string) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "vibemusic",
			Subsystem:   "transport",
			Name:        "connection_state",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Current session state as an enum value",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "transport",
			Name:        "messages_sent_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Outbound messages by wire type",
		}, []string{"type"}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "transport",
			Name:        "messages_received_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Inbound messages by wire type",
		}, []string{"type"}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "transport",
			Name:        "reconnect_attempts_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Reconnect attempts after unexpected closes",
		}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "transport",
			Name:        "parse_failures_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Inbound frames that failed to decode",
		}),
		sendRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "vibemusic",
			Subsystem:   "transport",
			Name:        "send_rejections_total",
			ConstLabels: prometheus.Labels{"component": componentName},
			Help:        "Sends refused because the socket was not open",
		}),
	}

	_ = registry.RegisterGauge(componentName, "connection_state", m.connectionState)
	_ = registry.RegisterCounterVec(componentName, "messages_sent", m.messagesSent)
	_ = registry.RegisterCounterVec(componentName, "messages_received", m.messagesReceived)
	_ = registry.RegisterCounter(componentName, "reconnect_attempts", m.reconnectAttempts)
	_ = registry.RegisterCounter(componentName, "parse_failures", m.parseFailures)
	_ = registry.RegisterCounter(componentName, "send_rejections", m.sendRejections)

	return m
}
