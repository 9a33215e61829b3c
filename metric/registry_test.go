package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kojaewoong0504/VibeMusic-sub000/errors"
)

func newTestCounter(name string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: "test counter",
	})
}

func TestRegisterCounter(t *testing.T) {
	registry := NewRegistry()

	err := registry.RegisterCounter("capture", "events_processed", newTestCounter("capture_events_processed"))
	require.NoError(t, err)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.RegisterCounter("capture", "dup", newTestCounter("capture_dup")))

	err := registry.RegisterCounter("capture", "dup", newTestCounter("capture_dup_other"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestSameMetricNameDifferentComponents(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.RegisterCounter("capture", "errors", newTestCounter("capture_errors")))
	require.NoError(t, registry.RegisterCounter("transport", "errors", newTestCounter("transport_errors")))
}

func TestUnregister(t *testing.T) {
	registry := NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "session_state", Help: "test gauge"})
	require.NoError(t, registry.RegisterGauge("transport", "session_state", gauge))

	assert.True(t, registry.Unregister("transport", "session_state"))
	assert.False(t, registry.Unregister("transport", "session_state"))

	// Re-registration after unregister succeeds
	require.NoError(t, registry.RegisterGauge("transport", "session_state", gauge))
}

func TestRegisterVecs(t *testing.T) {
	registry := NewRegistry()

	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_total", Help: "test",
	}, []string{"type"})
	require.NoError(t, registry.RegisterCounterVec("transport", "messages", cv))

	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "latency_seconds", Help: "test",
	}, []string{"stage"})
	require.NoError(t, registry.RegisterHistogramVec("capture", "latency", hv))
}
