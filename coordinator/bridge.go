package coordinator

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/Kojaewoong0504/VibeMusic-sub000/emotion"
	"github.com/Kojaewoong0504/VibeMusic-sub000/errors"
	"github.com/Kojaewoong0504/VibeMusic-sub000/pkg/timestamp"
	"github.com/Kojaewoong0504/VibeMusic-sub000/transport"
)

// NATS subjects the bridge publishes on.
const (
	SubjectEmotionCurrent = "vibemusic.emotion.current"
	SubjectSessionState   = "vibemusic.session.state"
)

// Bridge republishes coordinator events on NATS for out-of-process
// consumers. Publish failures are reported, never fatal; the in-process
// pipeline does not depend on the bridge.
type Bridge struct {
	nc             *nats.Conn
	emotionSubject string
	stateSubject   string
}

// NewBridge wraps a NATS connection. A nil connection yields a nil bridge,
// which disables bridging entirely.
func NewBridge(nc *nats.Conn) *Bridge {
	if nc == nil {
		return nil
	}
	return &Bridge{
		nc:             nc,
		emotionSubject: SubjectEmotionCurrent,
		stateSubject:   SubjectSessionState,
	}
}

// PublishEmotion republishes the current emotion sample.
func (b *Bridge) PublishEmotion(sample emotion.Sample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return errors.WrapInvalid(err, "coordinator", "PublishEmotion", "marshal sample")
	}
	if err := b.nc.Publish(b.emotionSubject, data); err != nil {
		return errors.WrapTransient(err, "coordinator", "PublishEmotion", "publish to NATS")
	}
	return nil
}

// stateEvent is the session-state payload on the wire.
type stateEvent struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Timestamp int64  `json:"timestamp"`
}

// PublishState republishes a session state transition.
func (b *Bridge) PublishState(sessionID string, state transport.ConnState) error {
	data, err := json.Marshal(stateEvent{
		SessionID: sessionID,
		State:     state.String(),
		Timestamp: timestamp.Now(),
	})
	if err != nil {
		return errors.WrapInvalid(err, "coordinator", "PublishState", "marshal state event")
	}
	if err := b.nc.Publish(b.stateSubject, data); err != nil {
		return errors.WrapTransient(err, "coordinator", "PublishState", "publish to NATS")
	}
	return nil
}
