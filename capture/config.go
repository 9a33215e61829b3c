package capture

import (
	"fmt"
	"time"

	"github.com/Kojaewoong0504/VibeMusic-sub000/errors"
)

// Config holds tuning parameters for the capture engine.
type Config struct {
	// BufferCapacity is the fixed size of the event ring buffer
	BufferCapacity int `json:"buffer_capacity"`
	// WindowMs is the trailing analysis window in milliseconds
	WindowMs int64 `json:"window_ms"`
	// AnalysisInterval throttles full pattern recomputation
	AnalysisInterval time.Duration `json:"analysis_interval"`
	// DebounceInterval collapses bursts when analysis runs inline
	DebounceInterval time.Duration `json:"debounce_interval"`
	// PauseThresholdMs classifies inter-key intervals as pauses
	PauseThresholdMs int64 `json:"pause_threshold_ms"`
	// LatencyCeiling is the ingestion-to-record latency target
	LatencyCeiling time.Duration `json:"latency_ceiling"`
	// WorkerQueueSize bounds the analysis offload queue
	WorkerQueueSize int `json:"worker_queue_size"`
	// DisableWorker forces synchronous inline analysis
	DisableWorker bool `json:"disable_worker"`
}

// DefaultConfig returns capture defaults: 1024-event ring, 5 s window,
// ~30 Hz analysis cadence, 500 ms pause threshold, 50 ms latency ceiling.
func DefaultConfig() Config {
	return Config{
		BufferCapacity:   1024,
		WindowMs:         5000,
		AnalysisInterval: 33 * time.Millisecond,
		DebounceInterval: 8 * time.Millisecond,
		PauseThresholdMs: 500,
		LatencyCeiling:   50 * time.Millisecond,
		WorkerQueueSize:  16,
	}
}

// Validate normalizes zero values to defaults and rejects invalid settings.
func (c *Config) Validate() error {
	defaults := DefaultConfig()

	if c.BufferCapacity == 0 {
		c.BufferCapacity = defaults.BufferCapacity
	}
	if c.BufferCapacity < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("buffer capacity %d must be positive", c.BufferCapacity),
			"capture", "Validate", "check buffer capacity")
	}
	if c.WindowMs <= 0 {
		c.WindowMs = defaults.WindowMs
	}
	if c.AnalysisInterval <= 0 {
		c.AnalysisInterval = defaults.AnalysisInterval
	}
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = defaults.DebounceInterval
	}
	if c.PauseThresholdMs <= 0 {
		c.PauseThresholdMs = defaults.PauseThresholdMs
	}
	if c.LatencyCeiling <= 0 {
		c.LatencyCeiling = defaults.LatencyCeiling
	}
	if c.WorkerQueueSize <= 0 {
		c.WorkerQueueSize = defaults.WorkerQueueSize
	}
	return nil
}
