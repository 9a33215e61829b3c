package capture

import (
	"math"

	"github.com/Kojaewoong0504/VibeMusic-sub000/pkg/timestamp"
)

// PatternSnapshot is the derived rhythm/speed/pause view over a trailing
// window of key events. Only the latest snapshot is retained.
type PatternSnapshot struct {
	// WindowEvents are the analysis events (key-down, edits excluded)
	WindowEvents []KeyEvent `json:"window_events"`
	// SpeedWPM is the estimated typing speed in words per minute
	SpeedWPM float64 `json:"speed_wpm"`
	// RhythmVariation is the coefficient of variation of inter-key intervals
	RhythmVariation float64 `json:"rhythm_variation"`
	// Consistency is max(0, 1-RhythmVariation)
	Consistency float64 `json:"consistency"`
	// Pressure is the normalized event density, min(1, n/100)
	Pressure float64 `json:"pressure"`
	// PauseIntervalsMs lists inter-key intervals exceeding the pause threshold
	PauseIntervalsMs []int64 `json:"pause_intervals_ms"`
	// ComputedAt is when the snapshot was computed, Unix milliseconds
	ComputedAt int64 `json:"computed_at"`
}

// ComputePattern derives a PatternSnapshot from a window of key events.
// The canonical formula uses key-down events only, with backspace/delete
// excluded; key-up timing never contributes.
func ComputePattern(events []KeyEvent, pauseThresholdMs int64) PatternSnapshot {
	window := analysisEvents(events)

	snapshot := PatternSnapshot{
		WindowEvents: window,
		Pressure:     math.Min(1, float64(len(window))/100),
		ComputedAt:   timestamp.Now(),
	}

	if len(window) < 2 {
		return snapshot
	}

	first := window[0].Timestamp
	last := window[len(window)-1].Timestamp
	if minutes := float64(last-first) / 60000; minutes > 0 {
		snapshot.SpeedWPM = (float64(len(window)) / 5) / minutes
	}

	intervals := make([]int64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		intervals = append(intervals, window[i].Timestamp-window[i-1].Timestamp)
	}

	m := meanInt64(intervals)
	if m > 0 {
		snapshot.RhythmVariation = stdDevInt64(intervals, m) / m
	}
	snapshot.Consistency = math.Max(0, 1-snapshot.RhythmVariation)

	for _, interval := range intervals {
		if interval > pauseThresholdMs {
			snapshot.PauseIntervalsMs = append(snapshot.PauseIntervalsMs, interval)
		}
	}

	return snapshot
}

func meanInt64(values []int64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum int64
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func stdDevInt64(values []int64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumSquares float64
	for _, v := range values {
		d := float64(v) - mean
		sumSquares += d * d
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}
