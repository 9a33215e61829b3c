package transport

import (
	"encoding/json"
	"fmt"

	"github.com/Kojaewoong0504/VibeMusic-sub000/errors"
)

// MessageType discriminates wire messages. The protocol is JSON, one object
// per message, with the type tag at the top level.
type MessageType string

// Client to server message types
const (
	TypeConnect       MessageType = "connect"
	TypeTypingPattern MessageType = "typing_pattern"
	TypeHeartbeat     MessageType = "heartbeat"
	TypeDisconnect    MessageType = "disconnect"
)

// Server to client message types
const (
	TypeConnectionEstablished MessageType = "connection_established"
	TypePatternAck            MessageType = "pattern_ack"
	TypeEmotionUpdate         MessageType = "emotion_update"
	TypeTypingDataProcessed   MessageType = "typing_data_processed"
	TypeError                 MessageType = "error"
)

// maxTextBufferChars bounds the optional text context sent with a pattern.
const maxTextBufferChars = 100

// ConnectMessage opens a logical session with the analyzer.
type ConnectMessage struct {
	Type         MessageType       `json:"type"`
	SessionToken string            `json:"session_token"`
	ClientInfo   map[string]string `json:"client_info,omitempty"`
}

// Keystroke is one key event on the wire.
type Keystroke struct {
	Key       string   `json:"key"`
	Timestamp int64    `json:"timestamp"`
	Duration  int64    `json:"duration,omitempty"`
	EventType string   `json:"event_type"` // "keydown" or "keyup"
	Modifiers []string `json:"modifiers,omitempty"`
}

// TypingPatternMessage carries a keystroke window to the analyzer.
// SequenceID increases monotonically; the server's ack echoes it.
type TypingPatternMessage struct {
	Type       MessageType `json:"type"`
	SequenceID int64       `json:"sequence_id"`
	Timestamp  int64       `json:"timestamp"`
	Keystrokes []Keystroke `json:"keystrokes"`
	TextBuffer string      `json:"text_buffer,omitempty"`
}

// HeartbeatMessage is the periodic keepalive sent while connected.
type HeartbeatMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

// DisconnectReason explains why the client is closing the session.
type DisconnectReason string

// Disconnect reasons
const (
	ReasonClientRequest  DisconnectReason = "CLIENT_REQUEST"
	ReasonSessionTimeout DisconnectReason = "SESSION_TIMEOUT"
	ReasonServerShutdown DisconnectReason = "SERVER_SHUTDOWN"
	ReasonError          DisconnectReason = "ERROR"
)

// DisconnectMessage announces an orderly close.
type DisconnectMessage struct {
	Type    MessageType      `json:"type"`
	Reason  DisconnectReason `json:"reason"`
	Message string           `json:"message,omitempty"`
}

// ConnectionEstablishedMessage confirms the session is accepted.
type ConnectionEstablishedMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// AckStatus reports how far the server got with a pattern.
type AckStatus string

// Ack statuses
const (
	AckReceived  AckStatus = "received"
	AckProcessed AckStatus = "processed"
	AckBuffered  AckStatus = "buffered"
)

// PatternAckMessage acknowledges a typing pattern by sequence id.
type PatternAckMessage struct {
	Type            MessageType `json:"type"`
	SequenceID      int64       `json:"sequence_id"`
	ServerTimestamp int64       `json:"server_timestamp"`
	LatencyMs       int64       `json:"latency_ms,omitempty"`
	Status          AckStatus   `json:"status"`
}

// EmotionData is the analyzer's 4-dimensional emotion vector plus confidence.
type EmotionData struct {
	Energy     float64 `json:"energy"`
	Valence    float64 `json:"valence"`
	Tension    float64 `json:"tension"`
	Focus      float64 `json:"focus"`
	Confidence float64 `json:"confidence"`
}

// EmotionUpdateMessage delivers a new emotion sample.
type EmotionUpdateMessage struct {
	Type MessageType `json:"type"`
	Data EmotionData `json:"data"`
}

// ProcessedData summarizes server-side pattern processing.
type ProcessedData struct {
	BufferSize       int      `json:"buffer_size"`
	PatternsDetected []string `json:"patterns_detected"`
}

// TypingDataProcessedMessage reports processing statistics.
type TypingDataProcessedMessage struct {
	Type MessageType   `json:"type"`
	Data ProcessedData `json:"data"`
}

// ErrorCode classifies server-reported errors.
type ErrorCode string

// Server error codes
const (
	CodeInvalidToken      ErrorCode = "INVALID_TOKEN"
	CodeSessionExpired    ErrorCode = "SESSION_EXPIRED"
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInvalidDataFormat ErrorCode = "INVALID_DATA_FORMAT"
	CodeServerError       ErrorCode = "SERVER_ERROR"
)

// ErrorMessage is a server-reported error. It does not imply the connection
// is closing; the server decides that separately.
type ErrorMessage struct {
	Type       MessageType     `json:"type"`
	ErrorCode  ErrorCode       `json:"error_code"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details,omitempty"`
	RetryAfter int64           `json:"retry_after,omitempty"`
}

// envelope is used to sniff the type tag before the typed unmarshal.
type envelope struct {
	Type MessageType `json:"type"`
}

// DecodeInbound parses a server-to-client message into its concrete type.
// Unknown types and malformed JSON are invalid errors; the caller keeps the
// connection open either way.
func DecodeInbound(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.WrapInvalid(err, "transport", "DecodeInbound", "sniff message type")
	}

	var (
		msg any
		err error
	)

	switch env.Type {
	case TypeConnectionEstablished:
		m := &ConnectionEstablishedMessage{}
		err = json.Unmarshal(data, m)
		msg = m
	case TypePatternAck:
		m := &PatternAckMessage{}
		err = json.Unmarshal(data, m)
		msg = m
	case TypeEmotionUpdate:
		m := &EmotionUpdateMessage{}
		err = json.Unmarshal(data, m)
		msg = m
	case TypeTypingDataProcessed:
		m := &TypingDataProcessedMessage{}
		err = json.Unmarshal(data, m)
		msg = m
	case TypeError:
		m := &ErrorMessage{}
		err = json.Unmarshal(data, m)
		msg = m
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownType, env.Type),
			"transport", "DecodeInbound", "dispatch message type")
	}

	if err != nil {
		return nil, errors.WrapInvalid(err, "transport", "DecodeInbound", "unmarshal message body")
	}
	return msg, nil
}

// truncateTextBuffer clips the optional text context to the protocol limit,
// counting runes so multi-byte input is not split mid-character.
func truncateTextBuffer(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTextBufferChars {
		return s
	}
	return string(runes[:maxTextBufferChars])
}
