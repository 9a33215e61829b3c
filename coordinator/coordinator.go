// Package coordinator wires the capture engine, the transport session, and
// the emotion aggregator into one pipeline and exposes an in-process pub/sub
// broker for consumers.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Kojaewoong0504/VibeMusic-sub000/capture"
	"github.com/Kojaewoong0504/VibeMusic-sub000/component"
	"github.com/Kojaewoong0504/VibeMusic-sub000/emotion"
	"github.com/Kojaewoong0504/VibeMusic-sub000/errors"
	"github.com/Kojaewoong0504/VibeMusic-sub000/metric"
	"github.com/Kojaewoong0504/VibeMusic-sub000/transport"
)

// Config controls the coordinator.
type Config struct {
	// DeliveryInterval is the outbound tick; only the most recent captured
	// event per tick results in a typing_pattern message. Default 100ms.
	DeliveryInterval time.Duration `json:"delivery_interval,omitempty"`
}

// DefaultConfig returns the standard coordinator tuning.
func DefaultConfig() Config {
	return Config{DeliveryInterval: 100 * time.Millisecond}
}

// Validate fills zero fields with defaults.
func (c *Config) Validate() error {
	if c.DeliveryInterval < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: negative delivery interval", errors.ErrInvalidConfig),
			"coordinator", "Validate", "check config bounds")
	}
	if c.DeliveryInterval == 0 {
		c.DeliveryInterval = 100 * time.Millisecond
	}
	return nil
}

// Deps are the components the coordinator drives. Engine, Session, and
// Emotions are required; Registry, Logger, and the bridge are optional.
type Deps struct {
	Engine   *capture.Engine
	Session  *transport.Manager
	Emotions *emotion.Aggregator
	Registry *metric.Registry
	Logger   *component.Logger
	Bridge   *Bridge
}

// EmotionState is the aggregator's derived views at one instant.
type EmotionState struct {
	Current  *emotion.Sample `json:"current,omitempty"`
	Smoothed *emotion.Sample `json:"smoothed,omitempty"`
	Trends   []emotion.Trend `json:"trends"`
	Summary  emotion.Summary `json:"summary"`
	Quality  emotion.Quality `json:"quality"`
}

// Snapshot is one immutable view of the whole pipeline.
type Snapshot struct {
	Capture    capture.EngineStats      `json:"capture"`
	Pattern    *capture.PatternSnapshot `json:"pattern,omitempty"`
	Connection transport.Session        `json:"connection"`
	Emotion    EmotionState             `json:"emotion"`
}

// Coordinator owns the pipeline lifecycle: it starts the engine and the
// session, runs the delivery tick, routes inbound messages, and republishes
// everything of interest on the broker.
type Coordinator struct {
	name    string
	cfg     Config
	deps    Deps
	broker  *Broker
	metrics *Metrics

	mu            sync.Mutex
	started       bool
	cancel        context.CancelFunc
	unsubMessages func()
	unsubStates   func()
	lastDelivered int64

	errorCount atomic.Int64
	startTime  time.Time
	wg         sync.WaitGroup
}

// New creates a coordinator over the given components.
func New(name string, cfg Config, deps Deps) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("coordinator.New: validate config: %w", err)
	}
	if deps.Engine == nil || deps.Session == nil || deps.Emotions == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: engine, session, and emotions are required", errors.ErrMissingConfig),
			"coordinator", "New", "check dependencies")
	}

	return &Coordinator{
		name:    name,
		cfg:     cfg,
		deps:    deps,
		broker:  NewBroker(),
		metrics: newMetrics(deps.Registry, name),
	}, nil
}

// Subscribe registers a broker handler. See the Event constants for the
// payload type each event carries.
func (c *Coordinator) Subscribe(event Event, handler Handler) Token {
	return c.broker.Subscribe(event, handler)
}

// Unsubscribe removes a broker subscription.
func (c *Coordinator) Unsubscribe(token Token) {
	c.broker.Unsubscribe(token)
}

// Start brings up the engine and the session, then runs the delivery loop.
// Starting twice is a no-op.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	if err := c.deps.Engine.Start(ctx); err != nil {
		return fmt.Errorf("coordinator.Start: start capture engine: %w", err)
	}
	if err := c.deps.Session.Start(ctx); err != nil {
		_ = c.deps.Engine.Stop(time.Second)
		return fmt.Errorf("coordinator.Start: start transport session: %w", err)
	}

	c.unsubMessages = c.deps.Session.OnMessage(c.routeMessage)
	c.unsubStates = c.deps.Session.OnStateChange(c.routeState)

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true
	c.startTime = time.Now()
	c.lastDelivered = 0

	c.wg.Add(1)
	go c.deliveryLoop(loopCtx)

	c.logInfo("coordinator started")
	return nil
}

// Stop tears the pipeline down in reverse start order. Idempotent.
func (c *Coordinator) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.cancel()
	if c.unsubMessages != nil {
		c.unsubMessages()
		c.unsubMessages = nil
	}
	if c.unsubStates != nil {
		c.unsubStates()
		c.unsubStates = nil
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("delivery loop still running after %v", timeout),
			"coordinator", "Stop", "drain delivery loop")
	}

	if err := c.deps.Session.Stop(timeout); err != nil {
		c.logError("transport stop failed", err)
	}
	if err := c.deps.Engine.Stop(timeout); err != nil {
		c.logError("capture stop failed", err)
	}

	c.logInfo("coordinator stopped")
	return nil
}

// Reset clears the capture window and the emotion history. Used when the
// caller starts a fresh logical session; the connection is left alone.
func (c *Coordinator) Reset() {
	c.deps.Engine.Reset()
	c.deps.Emotions.Clear()

	c.mu.Lock()
	c.lastDelivered = 0
	c.mu.Unlock()
}

// Snapshot assembles one immutable view across all components.
func (c *Coordinator) Snapshot() Snapshot {
	snap := Snapshot{
		Capture:    c.deps.Engine.Stats(),
		Pattern:    c.deps.Engine.LatestPattern(),
		Connection: c.deps.Session.Session(),
	}

	state := EmotionState{
		Trends:  c.deps.Emotions.Trends(),
		Summary: c.deps.Emotions.Summary(),
		Quality: c.deps.Emotions.DataQuality(),
	}
	if current, ok := c.deps.Emotions.Current(); ok {
		state.Current = &current
	}
	if smoothed, ok := c.deps.Emotions.Smoothed(); ok {
		state.Smoothed = &smoothed
	}
	snap.Emotion = state

	return snap
}

// Meta implements component.Discoverable
func (c *Coordinator) Meta() component.Metadata {
	return component.Metadata{
		Name:        c.name,
		Type:        "coordinator",
		Description: "Pipeline coordinator and pub/sub broker",
		Version:     "1.0.0",
	}
}

// Health implements component.Discoverable
func (c *Coordinator) Health() component.HealthStatus {
	c.mu.Lock()
	started := c.started
	startTime := c.startTime
	c.mu.Unlock()

	var uptime time.Duration
	if started {
		uptime = time.Since(startTime)
	}

	return component.HealthStatus{
		Healthy:    started,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorCount.Load()),
		Uptime:     uptime,
	}
}

// DataFlow implements component.Discoverable by mirroring the session flow.
func (c *Coordinator) DataFlow() component.FlowMetrics {
	return c.deps.Session.DataFlow()
}

// deliveryLoop forwards at most one typing pattern per tick. Intermediate
// events between ticks are dropped on purpose; the pattern window still
// reflects them.
func (c *Coordinator) deliveryLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.DeliveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.deliverLatest()
		}
	}
}

func (c *Coordinator) deliverLatest() {
	_, seq, ok := c.deps.Engine.LatestEvent()
	if !ok {
		return
	}

	c.mu.Lock()
	pending := seq != c.lastDelivered
	c.mu.Unlock()
	if !pending {
		return
	}

	if !c.deps.Session.IsConnected() {
		if c.metrics != nil {
			c.metrics.deliveriesSkipped.Inc()
		}
		return
	}

	keystrokes := c.keystrokeWindow()
	if _, sent := c.deps.Session.SendTypingPattern(keystrokes, ""); !sent {
		c.errorCount.Add(1)
		return
	}

	c.mu.Lock()
	c.lastDelivered = seq
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.deliveries.Inc()
	}
}

// keystrokeWindow converts the latest pattern window to wire keystrokes,
// falling back to the single latest event before any pattern exists.
func (c *Coordinator) keystrokeWindow() []transport.Keystroke {
	if pattern := c.deps.Engine.LatestPattern(); pattern != nil && len(pattern.WindowEvents) > 0 {
		return toWire(pattern.WindowEvents)
	}
	if ev, _, ok := c.deps.Engine.LatestEvent(); ok {
		return toWire([]capture.KeyEvent{ev})
	}
	return nil
}

// routeMessage dispatches inbound analyzer messages to the aggregator and
// the broker.
func (c *Coordinator) routeMessage(msg any) {
	switch v := msg.(type) {
	case *transport.EmotionUpdateMessage:
		c.deps.Emotions.Ingest(emotion.Sample{
			Energy:     v.Data.Energy,
			Valence:    v.Data.Valence,
			Tension:    v.Data.Tension,
			Focus:      v.Data.Focus,
			Confidence: v.Data.Confidence,
		})
		if current, ok := c.deps.Emotions.Current(); ok {
			c.publish(EventEmotionUpdate, current)
			c.bridgeEmotion(current)
		}
	case *transport.PatternAckMessage:
		c.publish(EventPatternAck, v)
	case *transport.TypingDataProcessedMessage:
		c.publish(EventTypingProcessed, v)
	case *transport.ErrorMessage:
		c.errorCount.Add(1)
		c.publish(EventServerError, v)
	}
}

// routeState republishes session state transitions.
func (c *Coordinator) routeState(state transport.ConnState) {
	c.publish(EventSessionState, state)
	c.bridgeState(state)
}

func (c *Coordinator) publish(event Event, payload any) {
	c.broker.Publish(event, payload)
	if c.metrics != nil {
		c.metrics.brokerEvents.WithLabelValues(string(event)).Inc()
	}
}

func (c *Coordinator) bridgeEmotion(sample emotion.Sample) {
	if c.deps.Bridge == nil {
		return
	}
	if err := c.deps.Bridge.PublishEmotion(sample); err != nil {
		if c.metrics != nil {
			c.metrics.bridgeFailures.Inc()
		}
		c.logError("bridge emotion publish failed", err)
		return
	}
	if c.metrics != nil {
		c.metrics.bridgePublishes.Inc()
	}
}

func (c *Coordinator) bridgeState(state transport.ConnState) {
	if c.deps.Bridge == nil {
		return
	}
	session := c.deps.Session.Session()
	if err := c.deps.Bridge.PublishState(session.SessionID, state); err != nil {
		if c.metrics != nil {
			c.metrics.bridgeFailures.Inc()
		}
		c.logError("bridge state publish failed", err)
		return
	}
	if c.metrics != nil {
		c.metrics.bridgePublishes.Inc()
	}
}

func (c *Coordinator) logInfo(msg string) {
	if c.deps.Logger != nil {
		c.deps.Logger.Info(msg)
	}
}

func (c *Coordinator) logError(msg string, err error) {
	if c.deps.Logger != nil {
		c.deps.Logger.Error(msg, err)
	}
}

// toWire converts captured key events to wire keystrokes.
func toWire(events []capture.KeyEvent) []transport.Keystroke {
	keystrokes := make([]transport.Keystroke, 0, len(events))
	for _, ev := range events {
		keystrokes = append(keystrokes, transport.Keystroke{
			Key:       ev.Key,
			Timestamp: ev.Timestamp,
			Duration:  ev.DurationMs,
			EventType: string(ev.Phase),
			Modifiers: ev.Modifiers,
		})
	}
	return keystrokes
}
