package emotion

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Kojaewoong0504/VibeMusic-sub000/component"
	"github.com/Kojaewoong0504/VibeMusic-sub000/metric"
	"github.com/Kojaewoong0504/VibeMusic-sub000/pkg/buffer"
	"github.com/Kojaewoong0504/VibeMusic-sub000/pkg/timestamp"
)

// Aggregator maintains the bounded emotion history and the derived views
// over it. All methods are safe for concurrent use; Ingest is the single
// writer, readers work on snapshots.
type Aggregator struct {
	name    string
	cfg     Config
	logger  *component.Logger
	metrics *Metrics

	mu      sync.RWMutex
	history buffer.Buffer[Sample]
	current *Sample

	ingested  atomic.Int64
	startTime time.Time
}

// NewAggregator creates an aggregator. The registry and logger may be nil.
func NewAggregator(name string, cfg Config, registry *metric.Registry, logger *component.Logger) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("emotion.NewAggregator: validate config: %w", err)
	}

	history, err := buffer.NewRing[Sample](cfg.HistoryCapacity)
	if err != nil {
		return nil, fmt.Errorf("emotion.NewAggregator: create history buffer: %w", err)
	}

	return &Aggregator{
		name:      name,
		cfg:       cfg,
		logger:    logger,
		metrics:   newMetrics(registry, name),
		history:   history,
		startTime: time.Now(),
	}, nil
}

// Ingest clamps the sample, stamps its ingestion time, and appends it to the
// history. The oldest sample falls out once the history is full.
func (a *Aggregator) Ingest(raw Sample) {
	sample := raw.clamped()
	sample.ReceivedAt = timestamp.Now()

	a.mu.Lock()
	_ = a.history.Write(sample)
	a.current = &sample
	size := a.history.Size()
	a.mu.Unlock()

	a.ingested.Add(1)
	a.metrics.observe(sample, size)
}

// Current returns the latest sample, false when nothing was ingested yet.
func (a *Aggregator) Current() (Sample, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return Sample{}, false
	}
	return *a.current, true
}

// Smoothed returns the per-channel mean of the trailing smoothing window.
// With fewer than two samples it equals Current.
func (a *Aggregator) Smoothed() (Sample, bool) {
	a.mu.RLock()
	samples := a.history.Snapshot()
	current := a.current
	a.mu.RUnlock()

	if current == nil {
		return Sample{}, false
	}
	if len(samples) < 2 {
		return *current, true
	}

	window := samples
	if len(window) > a.cfg.SmoothingWindow {
		window = window[len(window)-a.cfg.SmoothingWindow:]
	}

	var out Sample
	for _, s := range window {
		out.Energy += s.Energy
		out.Valence += s.Valence
		out.Tension += s.Tension
		out.Focus += s.Focus
		out.Confidence += s.Confidence
	}
	n := float64(len(window))
	out.Energy /= n
	out.Valence /= n
	out.Tension /= n
	out.Focus /= n
	out.Confidence /= n
	out.ReceivedAt = current.ReceivedAt
	return out, true
}

// History returns the retained samples, oldest first.
func (a *Aggregator) History() []Sample {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.history.Snapshot()
}

// Clear drops the history and the current sample. Used on session reset,
// not on transient disconnects.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	a.history.Clear()
	a.current = nil
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.historySize.Set(0)
	}
	if a.logger != nil {
		a.logger.Info("emotion history cleared")
	}
}

// Meta implements component.Discoverable
func (a *Aggregator) Meta() component.Metadata {
	return component.Metadata{
		Name:        a.name,
		Type:        "aggregator",
		Description: "Emotion sample history with smoothing, trends, and summaries",
		Version:     "1.0.0",
	}
}

// Health implements component.Discoverable. The aggregator has no failure
// modes of its own; health tracks whether it is receiving data.
func (a *Aggregator) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:   true,
		LastCheck: time.Now(),
		Uptime:    time.Since(a.startTime),
	}
}

// DataFlow implements component.Discoverable
func (a *Aggregator) DataFlow() component.FlowMetrics {
	var rate float64
	if secs := time.Since(a.startTime).Seconds(); secs > 0 {
		rate = float64(a.ingested.Load()) / secs
	}

	var lastActivity time.Time
	if current, ok := a.Current(); ok {
		lastActivity = timestamp.FromUnixMs(current.ReceivedAt)
	}

	return component.FlowMetrics{
		MessagesPerSecond: rate,
		LastActivity:      lastActivity,
	}
}
