package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func downEvents(start int64, spacingMs int64, count int) []KeyEvent {
	events := make([]KeyEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, KeyEvent{
			Key:       "a",
			Timestamp: start + int64(i)*spacingMs,
			Phase:     PhaseDown,
		})
	}
	return events
}

// 10 key-down events spaced exactly 200 ms apart span 1.8 s:
// (10/5) / (1.8/60) = 66.67 WPM.
func TestComputePatternSpeed(t *testing.T) {
	events := downEvents(1_000_000, 200, 10)
	p := ComputePattern(events, 500)

	assert.InDelta(t, 66.67, p.SpeedWPM, 0.01)
	assert.Len(t, p.WindowEvents, 10)
}

func TestComputePatternTooFewEvents(t *testing.T) {
	p := ComputePattern(nil, 500)
	assert.Zero(t, p.SpeedWPM)
	assert.Zero(t, p.RhythmVariation)
	assert.Empty(t, p.PauseIntervalsMs)

	p = ComputePattern(downEvents(0, 100, 1), 500)
	assert.Zero(t, p.SpeedWPM)
}

func TestComputePatternPerfectRhythm(t *testing.T) {
	p := ComputePattern(downEvents(1_000_000, 150, 20), 500)

	// Identical intervals: zero variation, full consistency
	assert.Zero(t, p.RhythmVariation)
	assert.Equal(t, 1.0, p.Consistency)
}

func TestComputePatternPauseDetection(t *testing.T) {
	// Intervals: 100, 600, 150, 900
	events := []KeyEvent{
		{Key: "a", Timestamp: 1000, Phase: PhaseDown},
		{Key: "b", Timestamp: 1100, Phase: PhaseDown},
		{Key: "c", Timestamp: 1700, Phase: PhaseDown},
		{Key: "d", Timestamp: 1850, Phase: PhaseDown},
		{Key: "e", Timestamp: 2750, Phase: PhaseDown},
	}

	p := ComputePattern(events, 500)
	assert.Equal(t, []int64{600, 900}, p.PauseIntervalsMs)
}

func TestComputePatternExcludesKeyUpAndEdits(t *testing.T) {
	events := []KeyEvent{
		{Key: "a", Timestamp: 1000, Phase: PhaseDown},
		{Key: "a", Timestamp: 1080, Phase: PhaseUp, DurationMs: 80},
		{Key: "Backspace", Timestamp: 1200, Phase: PhaseDown},
		{Key: "b", Timestamp: 1400, Phase: PhaseDown},
		{Key: "Delete", Timestamp: 1600, Phase: PhaseDown},
	}

	p := ComputePattern(events, 500)
	require.Len(t, p.WindowEvents, 2)
	assert.Equal(t, "a", p.WindowEvents[0].Key)
	assert.Equal(t, "b", p.WindowEvents[1].Key)
}

func TestComputePatternPressure(t *testing.T) {
	p := ComputePattern(downEvents(1_000_000, 10, 50), 500)
	assert.InDelta(t, 0.5, p.Pressure, 0.001)

	p = ComputePattern(downEvents(1_000_000, 10, 250), 500)
	assert.Equal(t, 1.0, p.Pressure)
}

func TestComputePatternRhythmVariation(t *testing.T) {
	// Intervals 100 and 300: mean 200, stddev 100, variation 0.5
	events := []KeyEvent{
		{Key: "a", Timestamp: 1000, Phase: PhaseDown},
		{Key: "b", Timestamp: 1100, Phase: PhaseDown},
		{Key: "c", Timestamp: 1400, Phase: PhaseDown},
	}

	p := ComputePattern(events, 500)
	assert.InDelta(t, 0.5, p.RhythmVariation, 0.001)
	assert.InDelta(t, 0.5, p.Consistency, 0.001)
}

func TestIsEdit(t *testing.T) {
	assert.True(t, KeyEvent{Key: "Backspace"}.IsEdit())
	assert.True(t, KeyEvent{Key: "Delete"}.IsEdit())
	assert.False(t, KeyEvent{Key: "a"}.IsEdit())
	assert.False(t, KeyEvent{Key: "Enter"}.IsEdit())
}
