// Package transport manages the websocket session with the remote emotion
// analyzer: connection lifecycle, heartbeats, reconnect with backoff, and
// the JSON wire protocol.
package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Kojaewoong0504/VibeMusic-sub000/component"
	"github.com/Kojaewoong0504/VibeMusic-sub000/errors"
	"github.com/Kojaewoong0504/VibeMusic-sub000/metric"
	"github.com/Kojaewoong0504/VibeMusic-sub000/pkg/timestamp"
)

// ConnState is the session connection state.
type ConnState int

const (
	// StateDisconnected means no socket and no pending work
	StateDisconnected ConnState = iota
	// StateConnecting means a dial is in flight
	StateConnecting
	// StateConnected means the socket is open, session not yet confirmed
	StateConnected
	// StateAuthenticated means the server confirmed the session
	StateAuthenticated
	// StateDisconnecting means an orderly close is in progress
	StateDisconnecting
	// StateReconnecting means a backoff timer is pending after a failure
	StateReconnecting
	// StateError means the last cycle failed; terminal once retries are spent
	StateError
)

// String returns a string representation of the connection state
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnecting:
		return "disconnecting"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MessageHandler receives decoded inbound messages.
type MessageHandler func(msg any)

// StateHandler receives connection state transitions. Notifications are
// delivered asynchronously; poll Session for the authoritative state.
type StateHandler func(state ConnState)

// Session is a point-in-time snapshot of the session.
type Session struct {
	SessionID         string    `json:"session_id"`
	State             ConnState `json:"state"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
	MessagesSent      int64     `json:"messages_sent"`
	MessagesReceived  int64     `json:"messages_received"`
	LastError         string    `json:"last_error,omitempty"`
}

// Manager owns one logical analyzer session at a time. Every async outcome
// (dial result, watchdog fire, read-loop exit, backoff timer) carries the
// generation it was spawned under and is discarded when a newer event has
// already advanced the state machine.
type Manager struct {
	name    string
	cfg     Config
	logger  *component.Logger
	metrics *Metrics
	dialer  *websocket.Dialer

	mu             sync.Mutex
	state          ConnState
	conn           *websocket.Conn
	connDone       chan struct{}
	sessionID      string
	attempts       int
	lastError      string
	manualClose    bool
	gen            uint64
	baseCtx        context.Context
	watchdog       *time.Timer
	reconnectTimer *time.Timer

	writeMu sync.Mutex

	handlersMu    sync.RWMutex
	msgHandlers   map[int]MessageHandler
	stateHandlers map[int]StateHandler
	nextHandlerID int

	seq          atomic.Int64
	sent         atomic.Int64
	received     atomic.Int64
	errorCount   atomic.Int64
	lastActivity atomic.Int64

	wg         sync.WaitGroup
	startNanos atomic.Int64
}

// NewManager creates a session manager. The registry and logger may be nil.
func NewManager(name string, cfg Config, registry *metric.Registry, logger *component.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("transport.NewManager: validate config: %w", err)
	}

	return &Manager{
		name:    name,
		cfg:     cfg,
		logger:  logger,
		metrics: newMetrics(registry, name),
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		state:         StateDisconnected,
		msgHandlers:   make(map[int]MessageHandler),
		stateHandlers: make(map[int]StateHandler),
	}, nil
}

// Connect starts a new session cycle. It returns immediately; the dial and
// handshake run in the background and surface through state transitions.
// Calling Connect while a cycle is already in flight is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnecting, StateConnected, StateAuthenticated, StateReconnecting:
		m.mu.Unlock()
		return nil
	case StateDisconnecting:
		m.mu.Unlock()
		return errors.WrapTransient(errors.ErrNotConnected, "transport", "Connect", "wait for disconnect to finish")
	}

	m.gen++
	gen := m.gen
	m.manualClose = false
	m.baseCtx = ctx
	m.sessionID = newSessionID()
	m.attempts = 0
	m.lastError = ""
	m.seq.Store(0)
	m.sent.Store(0)
	m.received.Store(0)
	m.startNanos.CompareAndSwap(0, time.Now().UnixNano())
	m.setStateLocked(StateConnecting)
	m.armWatchdogLocked(gen)
	m.mu.Unlock()

	m.logInfo(fmt.Sprintf("connecting to %s", m.cfg.URL))

	m.wg.Add(1)
	go m.dial(ctx, gen)
	return nil
}

// Disconnect closes the session and suppresses reconnects. Idempotent.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.gen++
	m.manualClose = true
	m.stopTimersLocked()
	m.setStateLocked(StateDisconnecting)
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		m.writeMu.Lock()
		_ = conn.WriteJSON(DisconnectMessage{Type: TypeDisconnect, Reason: ReasonClientRequest})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.writeMu.Unlock()
	}

	m.mu.Lock()
	m.closeConnLocked()
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	m.logInfo("session disconnected")
	return nil
}

// Send writes one message to the open socket. It reports false without
// queueing when the socket is not open; callers decide whether to retry.
func (m *Manager) Send(msg any) bool {
	m.mu.Lock()
	conn := m.conn
	open := conn != nil && (m.state == StateConnected || m.state == StateAuthenticated)
	m.mu.Unlock()

	if !open {
		if m.metrics != nil {
			m.metrics.sendRejections.Inc()
		}
		return false
	}

	m.writeMu.Lock()
	err := conn.WriteJSON(msg)
	m.writeMu.Unlock()
	if err != nil {
		m.errorCount.Add(1)
		m.logError("send failed", err)
		return false
	}

	m.sent.Add(1)
	m.lastActivity.Store(timestamp.Now())
	if m.metrics != nil {
		m.metrics.messagesSent.WithLabelValues(string(messageTypeOf(msg))).Inc()
	}
	return true
}

// SendTypingPattern sends a keystroke window with the next sequence id.
// The sequence id is returned even when the send is refused, so callers can
// correlate a later retry.
func (m *Manager) SendTypingPattern(keystrokes []Keystroke, textBuffer string) (int64, bool) {
	seq := m.seq.Add(1)
	msg := &TypingPatternMessage{
		Type:       TypeTypingPattern,
		SequenceID: seq,
		Timestamp:  timestamp.Now(),
		Keystrokes: keystrokes,
		TextBuffer: truncateTextBuffer(textBuffer),
	}
	return seq, m.Send(msg)
}

// OnMessage subscribes to decoded inbound messages. The returned function
// unsubscribes.
func (m *Manager) OnMessage(h MessageHandler) func() {
	m.handlersMu.Lock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.msgHandlers[id] = h
	m.handlersMu.Unlock()

	return func() {
		m.handlersMu.Lock()
		delete(m.msgHandlers, id)
		m.handlersMu.Unlock()
	}
}

// OnStateChange subscribes to connection state transitions. The returned
// function unsubscribes.
func (m *Manager) OnStateChange(h StateHandler) func() {
	m.handlersMu.Lock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.stateHandlers[id] = h
	m.handlersMu.Unlock()

	return func() {
		m.handlersMu.Lock()
		delete(m.stateHandlers, id)
		m.handlersMu.Unlock()
	}
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the socket is open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected || m.state == StateAuthenticated
}

// Session returns a snapshot of the session counters.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Session{
		SessionID:         m.sessionID,
		State:             m.state,
		ReconnectAttempts: m.attempts,
		MessagesSent:      m.sent.Load(),
		MessagesReceived:  m.received.Load(),
		LastError:         m.lastError,
	}
}

// Start implements component.Lifecycle by opening the session.
func (m *Manager) Start(ctx context.Context) error {
	return m.Connect(ctx)
}

// Stop implements component.Lifecycle with a bounded wait for the read and
// heartbeat goroutines to drain.
func (m *Manager) Stop(timeout time.Duration) error {
	if err := m.Disconnect(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("shutdown incomplete after %v", timeout),
			"transport", "Stop", "drain session goroutines")
	}
}

// Meta implements component.Discoverable
func (m *Manager) Meta() component.Metadata {
	return component.Metadata{
		Name:        m.name,
		Type:        "transport",
		Description: "Websocket session manager for the remote emotion analyzer",
		Version:     "1.0.0",
	}
}

// Health implements component.Discoverable
func (m *Manager) Health() component.HealthStatus {
	m.mu.Lock()
	state := m.state
	lastError := m.lastError
	m.mu.Unlock()

	var uptime time.Duration
	if start := m.startNanos.Load(); start > 0 {
		uptime = time.Since(time.Unix(0, start))
	}

	return component.HealthStatus{
		Healthy:    state == StateConnected || state == StateAuthenticated,
		LastCheck:  time.Now(),
		ErrorCount: int(m.errorCount.Load()),
		LastError:  lastError,
		Uptime:     uptime,
	}
}

// DataFlow implements component.Discoverable
func (m *Manager) DataFlow() component.FlowMetrics {
	var rate float64
	if start := m.startNanos.Load(); start > 0 {
		if secs := time.Since(time.Unix(0, start)).Seconds(); secs > 0 {
			rate = float64(m.sent.Load()+m.received.Load()) / secs
		}
	}

	var errorRate float64
	if total := m.sent.Load() + m.received.Load(); total > 0 {
		errorRate = float64(m.errorCount.Load()) / float64(total)
	}

	var lastActivity time.Time
	if ms := m.lastActivity.Load(); ms > 0 {
		lastActivity = timestamp.FromUnixMs(ms)
	}

	return component.FlowMetrics{
		MessagesPerSecond: rate,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// dial opens the websocket and, on success, installs the connection and
// spawns the read and heartbeat loops.
func (m *Manager) dial(ctx context.Context, gen uint64) {
	defer m.wg.Done()

	conn, resp, err := m.dialer.DialContext(ctx, m.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.mu.Unlock()
		m.handleFailure(gen, errors.WrapTransient(err, "transport", "dial", "open websocket"))
		return
	}

	m.stopWatchdogLocked()
	m.conn = conn
	m.attempts = 0
	done := make(chan struct{})
	m.connDone = done
	sessionID := m.sessionID
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	m.logInfo(fmt.Sprintf("connected, session %s", sessionID))

	if !m.Send(&ConnectMessage{
		Type:         TypeConnect,
		SessionToken: m.cfg.SessionToken,
		ClientInfo:   m.cfg.ClientInfo,
	}) {
		m.logError("connect message send failed", errors.ErrNotConnected)
	}

	m.wg.Add(2)
	go m.readLoop(conn, gen)
	go m.heartbeatLoop(done)
}

// readLoop drains inbound frames until the socket errors out.
func (m *Manager) readLoop(conn *websocket.Conn, gen uint64) {
	defer m.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleConnLost(gen, err)
			return
		}

		m.lastActivity.Store(timestamp.Now())

		msg, derr := DecodeInbound(data)
		if derr != nil {
			m.errorCount.Add(1)
			m.mu.Lock()
			m.lastError = derr.Error()
			m.mu.Unlock()
			if m.metrics != nil {
				m.metrics.parseFailures.Inc()
			}
			m.logError("inbound frame rejected", derr)
			continue
		}

		m.received.Add(1)
		if m.metrics != nil {
			m.metrics.messagesReceived.WithLabelValues(string(messageTypeOf(msg))).Inc()
		}

		switch v := msg.(type) {
		case *ConnectionEstablishedMessage:
			m.markAuthenticated(gen)
		case *ErrorMessage:
			m.errorCount.Add(1)
			m.mu.Lock()
			m.lastError = fmt.Sprintf("%s: %s", v.ErrorCode, v.Message)
			m.mu.Unlock()
			m.logError("server reported error", fmt.Errorf("%w: %s: %s",
				errors.ErrServerReported, v.ErrorCode, v.Message))
		}

		m.dispatch(msg)
	}
}

// heartbeatLoop sends keepalives while the connection that spawned it lives.
func (m *Manager) heartbeatLoop(done chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.mu.Lock()
			sessionID := m.sessionID
			m.mu.Unlock()

			if !m.Send(&HeartbeatMessage{Type: TypeHeartbeat, SessionID: sessionID}) && m.logger != nil {
				m.logger.Debug("heartbeat skipped, socket not open")
			}
		}
	}
}

// handleConnLost reacts to a read-loop exit. A stale generation means the
// close was deliberate and already handled.
func (m *Manager) handleConnLost(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.handleFailure(gen, errors.WrapTransient(
		fmt.Errorf("%w: %v", errors.ErrConnectionLost, cause),
		"transport", "readLoop", "read inbound frame"))
}

// handleFailure records the error and either schedules a reconnect or parks
// the session in the terminal error state.
func (m *Manager) handleFailure(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	nextGen := m.gen

	m.errorCount.Add(1)
	m.lastError = cause.Error()
	m.stopTimersLocked()
	m.closeConnLocked()

	if m.manualClose {
		m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		return
	}

	m.setStateLocked(StateError)

	if m.attempts >= m.cfg.Reconnect.MaxAttempts {
		m.lastError = errors.ErrReconnectExhausted.Error()
		m.mu.Unlock()
		m.logError("reconnect attempts exhausted", errors.ErrReconnectExhausted)
		return
	}

	delay := m.cfg.Reconnect.Delay(m.attempts)
	m.attempts++
	attempt := m.attempts
	m.setStateLocked(StateReconnecting)
	if m.metrics != nil {
		m.metrics.reconnectAttempts.Inc()
	}
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.redial(nextGen)
	})
	m.mu.Unlock()

	m.logError(fmt.Sprintf("connection failed, reconnect %d/%d in %v",
		attempt, m.cfg.Reconnect.MaxAttempts, delay), cause)
}

// redial runs when a backoff timer fires; it re-enters connecting without
// resetting the session id or counters.
func (m *Manager) redial(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.manualClose {
		m.mu.Unlock()
		return
	}
	ctx := m.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	m.setStateLocked(StateConnecting)
	m.armWatchdogLocked(gen)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.dial(ctx, gen)
}

// markAuthenticated promotes connected to authenticated once the server
// confirms the session.
func (m *Manager) markAuthenticated(gen uint64) {
	m.mu.Lock()
	if gen == m.gen && m.state == StateConnected {
		m.setStateLocked(StateAuthenticated)
	}
	m.mu.Unlock()

	m.logInfo("session authenticated")
}

// armWatchdogLocked bounds the connecting state. Callers hold mu.
func (m *Manager) armWatchdogLocked(gen uint64) {
	m.stopWatchdogLocked()
	m.watchdog = time.AfterFunc(m.cfg.ConnectTimeout, func() {
		m.mu.Lock()
		stale := gen != m.gen || m.state != StateConnecting
		m.mu.Unlock()
		if stale {
			return
		}
		m.handleFailure(gen, errors.WrapTransient(errors.ErrConnectionTimeout,
			"transport", "watchdog", "establish connection"))
	})
}

func (m *Manager) stopWatchdogLocked() {
	if m.watchdog != nil {
		m.watchdog.Stop()
		m.watchdog = nil
	}
}

func (m *Manager) stopTimersLocked() {
	m.stopWatchdogLocked()
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// closeConnLocked tears down the socket and releases the heartbeat loop.
// Callers hold mu.
func (m *Manager) closeConnLocked() {
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if m.connDone != nil {
		close(m.connDone)
		m.connDone = nil
	}
}

// setStateLocked transitions the state and notifies subscribers. Callers
// hold mu; handlers run on their own goroutine so they may call back in.
func (m *Manager) setStateLocked(next ConnState) {
	if m.state == next {
		return
	}
	m.state = next
	if m.metrics != nil {
		m.metrics.connectionState.Set(float64(next))
	}

	m.handlersMu.RLock()
	handlers := make([]StateHandler, 0, len(m.stateHandlers))
	for _, h := range m.stateHandlers {
		handlers = append(handlers, h)
	}
	m.handlersMu.RUnlock()

	if len(handlers) == 0 {
		return
	}
	go func() {
		for _, h := range handlers {
			h(next)
		}
	}()
}

// dispatch fans a decoded message out to subscribers.
func (m *Manager) dispatch(msg any) {
	m.handlersMu.RLock()
	handlers := make([]MessageHandler, 0, len(m.msgHandlers))
	for _, h := range m.msgHandlers {
		handlers = append(handlers, h)
	}
	m.handlersMu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}

func (m *Manager) logInfo(msg string) {
	if m.logger != nil {
		m.logger.Info(msg)
	}
}

func (m *Manager) logError(msg string, err error) {
	if m.logger != nil {
		m.logger.Error(msg, err)
	}
}

// messageTypeOf recovers the wire type tag for metric labels.
func messageTypeOf(msg any) MessageType {
	switch v := msg.(type) {
	case *ConnectMessage:
		return v.Type
	case ConnectMessage:
		return v.Type
	case *TypingPatternMessage:
		return v.Type
	case *HeartbeatMessage:
		return v.Type
	case *DisconnectMessage:
		return v.Type
	case DisconnectMessage:
		return v.Type
	case *ConnectionEstablishedMessage:
		return v.Type
	case *PatternAckMessage:
		return v.Type
	case *EmotionUpdateMessage:
		return v.Type
	case *TypingDataProcessedMessage:
		return v.Type
	case *ErrorMessage:
		return v.Type
	default:
		return "unknown"
	}
}

// newSessionID builds a unique id for one connect cycle.
func newSessionID() string {
	return "sess-" + uuid.NewString()
}
