package emotion

import (
	"github.com/Kojaewoong0504/VibeMusic-sub000/pkg/timestamp"
)

// Direction is the movement of one emotion channel over the trend window.
type Direction string

// Trend directions
const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"
)

// Trend describes the movement of one channel over the trailing window.
type Trend struct {
	Metric    string    `json:"metric"`
	Direction Direction `json:"direction"`
	Change    float64   `json:"change"`
	WindowMs  int64     `json:"window_ms"`
}

// DominantEmotion is the coarse classification of a session.
type DominantEmotion string

// Dominant emotion classes
const (
	DominantEnergetic DominantEmotion = "energetic"
	DominantCalm      DominantEmotion = "calm"
	DominantPositive  DominantEmotion = "positive"
	DominantNegative  DominantEmotion = "negative"
	DominantNeutral   DominantEmotion = "neutral"
)

// Summary condenses the retained history into per-channel means, a dominant
// emotion, and a stability score in [0,1].
type Summary struct {
	AvgEnergy  float64         `json:"avg_energy"`
	AvgValence float64         `json:"avg_valence"`
	AvgTension float64         `json:"avg_tension"`
	AvgFocus   float64         `json:"avg_focus"`
	Dominant   DominantEmotion `json:"dominant"`
	Stability  float64         `json:"stability"`
	DataCount  int             `json:"data_count"`
}

// Quality grades how trustworthy the current emotion state is.
type Quality string

// Data quality grades
const (
	QualityNoData    Quality = "no_data"
	QualityPoor      Quality = "poor"
	QualityFair      Quality = "fair"
	QualityGood      Quality = "good"
	QualityExcellent Quality = "excellent"
)

// trendChannels maps metric names to their accessor, in reporting order.
var trendChannels = []struct {
	name string
	get  func(Sample) float64
}{
	{"energy", func(s Sample) float64 { return s.Energy }},
	{"valence", func(s Sample) float64 { return s.Valence }},
	{"tension", func(s Sample) float64 { return s.Tension }},
	{"focus", func(s Sample) float64 { return s.Focus }},
}

// Trends compares the first and second half of the trailing window per
// channel. Fewer than three samples in the window means every channel
// reports stable.
func (a *Aggregator) Trends() []Trend {
	cutoff := timestamp.Now() - a.cfg.TrendWindowMs

	a.mu.RLock()
	all := a.history.Snapshot()
	a.mu.RUnlock()

	window := all[:0:0]
	for _, s := range all {
		if s.ReceivedAt >= cutoff {
			window = append(window, s)
		}
	}

	trends := make([]Trend, 0, len(trendChannels))
	for _, ch := range trendChannels {
		trend := Trend{Metric: ch.name, Direction: DirectionStable, WindowMs: a.cfg.TrendWindowMs}
		if len(window) >= 3 {
			mid := len(window) / 2
			first := meanOf(window[:mid], ch.get)
			second := meanOf(window[mid:], ch.get)
			trend.Change = second - first
			switch {
			case trend.Change > a.cfg.TrendEpsilon:
				trend.Direction = DirectionIncreasing
			case trend.Change < -a.cfg.TrendEpsilon:
				trend.Direction = DirectionDecreasing
			}
		}
		trends = append(trends, trend)
	}
	return trends
}

// Summary computes per-channel means over the whole retained history and
// classifies the dominant emotion.
func (a *Aggregator) Summary() Summary {
	a.mu.RLock()
	samples := a.history.Snapshot()
	a.mu.RUnlock()

	if len(samples) == 0 {
		return Summary{Dominant: DominantNeutral}
	}

	summary := Summary{
		AvgEnergy:  meanOf(samples, func(s Sample) float64 { return s.Energy }),
		AvgValence: meanOf(samples, func(s Sample) float64 { return s.Valence }),
		AvgTension: meanOf(samples, func(s Sample) float64 { return s.Tension }),
		AvgFocus:   meanOf(samples, func(s Sample) float64 { return s.Focus }),
		DataCount:  len(samples),
	}

	switch {
	case summary.AvgEnergy > 0.7:
		summary.Dominant = DominantEnergetic
	case summary.AvgEnergy < 0.3:
		summary.Dominant = DominantCalm
	case summary.AvgValence > 0.3:
		summary.Dominant = DominantPositive
	case summary.AvgValence < -0.3:
		summary.Dominant = DominantNegative
	default:
		summary.Dominant = DominantNeutral
	}

	avgVar := (varianceOf(samples, func(s Sample) float64 { return s.Energy }) +
		varianceOf(samples, func(s Sample) float64 { return s.Valence })) / 2
	summary.Stability = 1 - avgVar*2
	if summary.Stability < 0 {
		summary.Stability = 0
	}

	return summary
}

// DataQuality grades the current state: no data when nothing was ingested or
// the latest sample went stale, otherwise by the latest confidence.
func (a *Aggregator) DataQuality() Quality {
	current, ok := a.Current()
	if !ok {
		return QualityNoData
	}
	if timestamp.Now()-current.ReceivedAt > a.cfg.StaleAfterMs {
		return QualityNoData
	}

	switch {
	case current.Confidence < 0.3:
		return QualityPoor
	case current.Confidence < 0.6:
		return QualityFair
	case current.Confidence < 0.8:
		return QualityGood
	default:
		return QualityExcellent
	}
}

func meanOf(samples []Sample, get func(Sample) float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += get(s)
	}
	return sum / float64(len(samples))
}

// varianceOf is the population variance of one channel.
func varianceOf(samples []Sample, get func(Sample) float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	mean := meanOf(samples, get)
	var sum float64
	for _, s := range samples {
		d := get(s) - mean
		sum += d * d
	}
	return sum / float64(len(samples))
}
