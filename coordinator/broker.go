package coordinator

import "sync"

// Event names the channels the coordinator publishes on.
type Event string

// Broker events
const (
	// EventEmotionUpdate carries the current emotion.Sample after ingestion
	EventEmotionUpdate Event = "emotion.update"
	// EventPatternAck carries *transport.PatternAckMessage untransformed
	EventPatternAck Event = "pattern.ack"
	// EventTypingProcessed carries *transport.TypingDataProcessedMessage
	EventTypingProcessed Event = "typing.processed"
	// EventSessionState carries transport.ConnState transitions
	EventSessionState Event = "session.state"
	// EventServerError carries *transport.ErrorMessage
	EventServerError Event = "server.error"
)

// Handler receives one published payload.
type Handler func(payload any)

// Token identifies a subscription for Unsubscribe.
type Token struct {
	event Event
	id    int
}

// Broker is a minimal in-process pub/sub hub. Publish calls handlers
// synchronously on the publisher's goroutine; handlers must not block.
type Broker struct {
	mu     sync.RWMutex
	subs   map[Event]map[int]Handler
	nextID int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[Event]map[int]Handler)}
}

// Subscribe registers a handler for one event.
func (b *Broker) Subscribe(event Event, handler Handler) Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[event] == nil {
		b.subs[event] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subs[event][id] = handler
	return Token{event: event, id: id}
}

// Unsubscribe removes a subscription. Unknown tokens are ignored.
func (b *Broker) Unsubscribe(token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.subs[token.event]; ok {
		delete(handlers, token.id)
	}
}

// Publish delivers the payload to every subscriber of the event.
func (b *Broker) Publish(event Event, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event]))
	for _, h := range b.subs[event] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}

// SubscriberCount reports how many handlers listen on the event.
func (b *Broker) SubscriberCount(event Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}
