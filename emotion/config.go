package emotion

import (
	"fmt"

	"github.com/Kojaewoong0504/VibeMusic-sub000/errors"
)

// Config controls history retention and derived-value windows.
type Config struct {
	// HistoryCapacity bounds the retained sample history. Default 150.
	HistoryCapacity int `json:"history_capacity,omitempty"`

	// SmoothingWindow is the number of trailing samples averaged by
	// Smoothed. Default 5.
	SmoothingWindow int `json:"smoothing_window,omitempty"`

	// TrendWindowMs is the trailing window examined by Trends. Default 30000.
	TrendWindowMs int64 `json:"trend_window_ms,omitempty"`

	// TrendEpsilon is the minimum half-split mean change that counts as a
	// direction. Default 0.05.
	TrendEpsilon float64 `json:"trend_epsilon,omitempty"`

	// StaleAfterMs is how old the latest sample may be before DataQuality
	// reports no data. Default 10000.
	StaleAfterMs int64 `json:"stale_after_ms,omitempty"`
}

// DefaultConfig returns the standard aggregator tuning.
func DefaultConfig() Config {
	return Config{
		HistoryCapacity: 150,
		SmoothingWindow: 5,
		TrendWindowMs:   30_000,
		TrendEpsilon:    0.05,
		StaleAfterMs:    10_000,
	}
}

// Validate fills zero fields with defaults and rejects negative values.
func (c *Config) Validate() error {
	if c.HistoryCapacity < 0 || c.SmoothingWindow < 0 || c.TrendWindowMs < 0 ||
		c.TrendEpsilon < 0 || c.StaleAfterMs < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: negative aggregator tuning", errors.ErrInvalidConfig),
			"emotion", "Validate", "check config bounds")
	}

	def := DefaultConfig()
	if c.HistoryCapacity == 0 {
		c.HistoryCapacity = def.HistoryCapacity
	}
	if c.SmoothingWindow == 0 {
		c.SmoothingWindow = def.SmoothingWindow
	}
	if c.TrendWindowMs == 0 {
		c.TrendWindowMs = def.TrendWindowMs
	}
	if c.TrendEpsilon == 0 {
		c.TrendEpsilon = def.TrendEpsilon
	}
	if c.StaleAfterMs == 0 {
		c.StaleAfterMs = def.StaleAfterMs
	}
	return nil
}
