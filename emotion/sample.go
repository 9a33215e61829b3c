// Package emotion aggregates the analyzer's emotion updates into a bounded
// history and derives smoothed values, trends, and session summaries.
package emotion

// Sample is one emotion reading. Energy, tension, focus, and confidence live
// in [0,1]; valence lives in [-1,1]. ReceivedAt is stamped at ingestion
// (unix ms).
type Sample struct {
	Energy     float64 `json:"energy"`
	Valence    float64 `json:"valence"`
	Tension    float64 `json:"tension"`
	Focus      float64 `json:"focus"`
	Confidence float64 `json:"confidence"`
	ReceivedAt int64   `json:"received_at"`
}

// clamped returns the sample with every channel forced into its valid range.
// Out-of-range input is corrected, never rejected.
func (s Sample) clamped() Sample {
	s.Energy = clamp01(s.Energy)
	s.Valence = clampSigned(s.Valence)
	s.Tension = clamp01(s.Tension)
	s.Focus = clamp01(s.Focus)
	s.Confidence = clamp01(s.Confidence)
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampSigned(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
