package component

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateCreated, "created"},
		{StateStarted, "started"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}

func TestLoggerWithoutNATS(t *testing.T) {
	logger := NewLogger("capture", "session-1", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Publishing disabled; local logging must not panic
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", errors.New("boom"))
}

func TestLoggerNilSlog(t *testing.T) {
	logger := NewLogger("capture", "session-1", nil, nil)

	logger.Info("no sinks at all")
	logger.Error("still fine", nil)
}
