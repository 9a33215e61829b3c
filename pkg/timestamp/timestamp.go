// Package timestamp provides standardized Unix timestamp handling utilities.
//
// All timestamps in the pipeline are int64 milliseconds since the Unix epoch
// (UTC). Key events, wire messages, and emotion samples share this format so
// latency math never crosses unit boundaries.
//
// Zero Value Semantics:
//   - A timestamp value of 0 means "not set" or "unknown"
//   - Functions handle zero values gracefully, returning appropriate defaults
package timestamp

import (
	"time"
)

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ToUnixMs converts a time.Time to Unix milliseconds.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time.
// Returns zero time if timestamp is 0.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// SinceMs returns the elapsed wall-clock time in milliseconds since ts.
// Returns 0 when ts is unset or in the future.
func SinceMs(ts int64) int64 {
	if ts == 0 {
		return 0
	}
	elapsed := Now() - ts
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Format renders a millisecond timestamp as RFC3339 for display and logs.
// Returns an empty string for unset timestamps.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return FromUnixMs(ms).Format(time.RFC3339Nano)
}
