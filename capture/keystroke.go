package capture

// Phase identifies whether a key event is a press or a release.
type Phase string

const (
	// PhaseDown is a key press event
	PhaseDown Phase = "keydown"
	// PhaseUp is a key release event
	PhaseUp Phase = "keyup"
)

// KeyEvent is a single timestamped keyboard event. Events are immutable once
// ingested and stored by value in the engine's ring buffer, so slot reuse
// replaces per-event heap allocation.
type KeyEvent struct {
	// Key is the symbolic key identifier as reported by the input surface
	Key string `json:"key"`
	// Timestamp is the ingestion time in Unix milliseconds
	Timestamp int64 `json:"timestamp"`
	// Phase is keydown or keyup
	Phase Phase `json:"event_type"`
	// DurationMs is the press duration, known only at keyup
	DurationMs int64 `json:"duration,omitempty"`
	// Modifiers lists active modifier keys (ctrl, alt, shift, meta)
	Modifiers []string `json:"modifiers,omitempty"`
}

// editKeys are excluded from rhythm and speed analysis.
var editKeys = map[string]struct{}{
	"Backspace": {},
	"Delete":    {},
}

// IsEdit reports whether the event is a backspace or delete keystroke.
func (e KeyEvent) IsEdit() bool {
	_, ok := editKeys[e.Key]
	return ok
}

// analysisEvents filters a window down to the canonical analysis set:
// key-down events excluding backspace and delete.
func analysisEvents(events []KeyEvent) []KeyEvent {
	out := make([]KeyEvent, 0, len(events))
	for _, e := range events {
		if e.Phase != PhaseDown || e.IsEdit() {
			continue
		}
		out = append(out, e)
	}
	return out
}
