package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kojaewoong0504/VibeMusic-sub000/errors"
)

func TestDecodeInboundConnectionEstablished(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type":"connection_established","message":"welcome"}`))
	require.NoError(t, err)

	m, ok := msg.(*ConnectionEstablishedMessage)
	require.True(t, ok)
	assert.Equal(t, "welcome", m.Message)
}

func TestDecodeInboundPatternAck(t *testing.T) {
	msg, err := DecodeInbound([]byte(
		`{"type":"pattern_ack","sequence_id":42,"server_timestamp":1700000000000,"latency_ms":12,"status":"processed"}`))
	require.NoError(t, err)

	m, ok := msg.(*PatternAckMessage)
	require.True(t, ok)
	assert.Equal(t, int64(42), m.SequenceID)
	assert.Equal(t, int64(1700000000000), m.ServerTimestamp)
	assert.Equal(t, int64(12), m.LatencyMs)
	assert.Equal(t, AckProcessed, m.Status)
}

func TestDecodeInboundEmotionUpdate(t *testing.T) {
	msg, err := DecodeInbound([]byte(
		`{"type":"emotion_update","data":{"energy":0.8,"valence":-0.2,"tension":0.4,"focus":0.9,"confidence":0.7}}`))
	require.NoError(t, err)

	m, ok := msg.(*EmotionUpdateMessage)
	require.True(t, ok)
	assert.Equal(t, 0.8, m.Data.Energy)
	assert.Equal(t, -0.2, m.Data.Valence)
	assert.Equal(t, 0.4, m.Data.Tension)
	assert.Equal(t, 0.9, m.Data.Focus)
	assert.Equal(t, 0.7, m.Data.Confidence)
}

func TestDecodeInboundTypingDataProcessed(t *testing.T) {
	msg, err := DecodeInbound([]byte(
		`{"type":"typing_data_processed","data":{"buffer_size":37,"patterns_detected":["burst","pause"]}}`))
	require.NoError(t, err)

	m, ok := msg.(*TypingDataProcessedMessage)
	require.True(t, ok)
	assert.Equal(t, 37, m.Data.BufferSize)
	assert.Equal(t, []string{"burst", "pause"}, m.Data.PatternsDetected)
}

func TestDecodeInboundError(t *testing.T) {
	msg, err := DecodeInbound([]byte(
		`{"type":"error","error_code":"RATE_LIMIT_EXCEEDED","message":"slow down","retry_after":5000}`))
	require.NoError(t, err)

	m, ok := msg.(*ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, CodeRateLimitExceeded, m.ErrorCode)
	assert.Equal(t, "slow down", m.Message)
	assert.Equal(t, int64(5000), m.RetryAfter)
}

func TestDecodeInboundUnknownType(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"type":"bogus"}`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, errors.ErrUnknownType)
}

func TestDecodeInboundMalformedJSON(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"type":`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestTruncateTextBuffer(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, truncateTextBuffer(short))

	long := strings.Repeat("x", 150)
	assert.Len(t, truncateTextBuffer(long), maxTextBufferChars)

	// Rune-aware: multi-byte characters count as one
	wide := strings.Repeat("한", 120)
	got := truncateTextBuffer(wide)
	assert.Equal(t, maxTextBufferChars, len([]rune(got)))
}
