package transport

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kojaewoong0504/VibeMusic-sub000/pkg/retry"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// newWSServer starts an httptest server that upgrades each request and hands
// the connection to handler on its own goroutine.
func newWSServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)

	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// acceptSession reads the connect message and confirms the session.
func acceptSession(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	var connect ConnectMessage
	if err := conn.ReadJSON(&connect); err != nil {
		return
	}
	assert.Equal(t, TypeConnect, connect.Type)
	assert.Equal(t, "test-token", connect.SessionToken)

	_ = conn.WriteJSON(ConnectionEstablishedMessage{
		Type:    TypeConnectionEstablished,
		Message: "session accepted",
	})
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.SessionToken = "test-token"
	cfg.HeartbeatInterval = time.Minute
	cfg.Reconnect = retry.Config{
		MaxAttempts:  2,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   1.5,
	}
	return cfg
}

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()

	mgr, err := NewManager("transport-test", cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Stop(time.Second) })
	return mgr
}

func TestManagerConnectAndAuthenticate(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		acceptSession(t, conn)
		// Keep the socket open until the client leaves
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mgr := newTestManager(t, testConfig(url))
	require.NoError(t, mgr.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return mgr.State() == StateAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	stats := mgr.Session()
	assert.NotEmpty(t, stats.SessionID)
	assert.Zero(t, stats.ReconnectAttempts)
}

func TestManagerConnectIsIdempotent(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		acceptSession(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mgr := newTestManager(t, testConfig(url))
	require.NoError(t, mgr.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return mgr.State() == StateAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	first := mgr.Session().SessionID
	require.NoError(t, mgr.Connect(context.Background()))
	assert.Equal(t, first, mgr.Session().SessionID)
	assert.Equal(t, StateAuthenticated, mgr.State())
}

func TestManagerSendTypingPattern(t *testing.T) {
	patterns := make(chan TypingPatternMessage, 1)
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		acceptSession(t, conn)
		var msg TypingPatternMessage
		if err := conn.ReadJSON(&msg); err == nil {
			patterns <- msg
		}
	})

	mgr := newTestManager(t, testConfig(url))
	require.NoError(t, mgr.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return mgr.State() == StateAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	keys := []Keystroke{{Key: "a", Timestamp: 1000, EventType: "keydown"}}
	seq, ok := mgr.SendTypingPattern(keys, strings.Repeat("z", 200))
	require.True(t, ok)
	assert.Equal(t, int64(1), seq)

	select {
	case got := <-patterns:
		assert.Equal(t, TypeTypingPattern, got.Type)
		assert.Equal(t, int64(1), got.SequenceID)
		require.Len(t, got.Keystrokes, 1)
		assert.Equal(t, "a", got.Keystrokes[0].Key)
		assert.Len(t, got.TextBuffer, maxTextBufferChars)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the typing pattern")
	}
}

func TestManagerSendWhileDisconnected(t *testing.T) {
	mgr := newTestManager(t, testConfig("ws://127.0.0.1:1/unreachable"))

	assert.False(t, mgr.Send(&HeartbeatMessage{Type: TypeHeartbeat}))
	seq, ok := mgr.SendTypingPattern(nil, "")
	assert.False(t, ok)
	assert.Equal(t, int64(1), seq)
}

func TestManagerInboundDispatch(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		acceptSession(t, conn)
		_ = conn.WriteJSON(EmotionUpdateMessage{
			Type: TypeEmotionUpdate,
			Data: EmotionData{Energy: 0.5, Valence: 0.1, Tension: 0.2, Focus: 0.9, Confidence: 0.8},
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mgr := newTestManager(t, testConfig(url))

	updates := make(chan *EmotionUpdateMessage, 4)
	unsubscribe := mgr.OnMessage(func(msg any) {
		if update, ok := msg.(*EmotionUpdateMessage); ok {
			updates <- update
		}
	})
	defer unsubscribe()

	require.NoError(t, mgr.Connect(context.Background()))

	select {
	case update := <-updates:
		assert.Equal(t, 0.9, update.Data.Focus)
	case <-time.After(2 * time.Second):
		t.Fatal("emotion update never dispatched")
	}

	assert.GreaterOrEqual(t, mgr.Session().MessagesReceived, int64(2))
}

func TestManagerUnknownInboundKeepsConnection(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		acceptSession(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`))
		_ = conn.WriteJSON(EmotionUpdateMessage{Type: TypeEmotionUpdate, Data: EmotionData{Energy: 1}})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mgr := newTestManager(t, testConfig(url))

	updates := make(chan *EmotionUpdateMessage, 1)
	mgr.OnMessage(func(msg any) {
		if update, ok := msg.(*EmotionUpdateMessage); ok {
			updates <- update
		}
	})

	require.NoError(t, mgr.Connect(context.Background()))

	select {
	case update := <-updates:
		assert.Equal(t, 1.0, update.Data.Energy)
	case <-time.After(2 * time.Second):
		t.Fatal("valid message after unknown frame never arrived")
	}

	// The rejected frame is observable through the session snapshot, and the
	// connection stays open.
	assert.NotEmpty(t, mgr.Session().LastError)
	assert.Contains(t, []ConnState{StateConnected, StateAuthenticated}, mgr.State())
}

func TestManagerMalformedInboundSetsLastError(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		acceptSession(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mgr := newTestManager(t, testConfig(url))
	require.NoError(t, mgr.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return mgr.State() == StateAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return mgr.Session().LastError != ""
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateAuthenticated, mgr.State())
}

func TestManagerServerErrorRecorded(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		acceptSession(t, conn)
		_ = conn.WriteJSON(ErrorMessage{
			Type:      TypeError,
			ErrorCode: CodeRateLimitExceeded,
			Message:   "slow down",
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mgr := newTestManager(t, testConfig(url))
	require.NoError(t, mgr.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return strings.Contains(mgr.Session().LastError, string(CodeRateLimitExceeded))
	}, 2*time.Second, 10*time.Millisecond)

	// A server-reported error alone does not drop the session
	assert.Contains(t, []ConnState{StateConnected, StateAuthenticated}, mgr.State())
}

func TestManagerHeartbeat(t *testing.T) {
	heartbeats := make(chan HeartbeatMessage, 8)
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		acceptSession(t, conn)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env envelope
			var hb HeartbeatMessage
			if err := unmarshalBoth(data, &env, &hb); err == nil && env.Type == TypeHeartbeat {
				heartbeats <- hb
			}
		}
	})

	cfg := testConfig(url)
	cfg.HeartbeatInterval = 20 * time.Millisecond
	mgr := newTestManager(t, cfg)
	require.NoError(t, mgr.Connect(context.Background()))

	select {
	case hb := <-heartbeats:
		assert.NotEmpty(t, hb.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat received")
	}
}

func TestManagerReconnectExhaustion(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		// Slam the door on every attempt
		_ = conn.Close()
	})

	mgr := newTestManager(t, testConfig(url))
	require.NoError(t, mgr.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return mgr.State() == StateError
	}, 5*time.Second, 10*time.Millisecond)

	stats := mgr.Session()
	assert.Equal(t, 2, stats.ReconnectAttempts)
	assert.Contains(t, stats.LastError, "reconnect")
}

func TestManagerManualDisconnectSuppressesReconnect(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		acceptSession(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mgr := newTestManager(t, testConfig(url))
	require.NoError(t, mgr.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return mgr.State() == StateAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, mgr.Disconnect())
	assert.Equal(t, StateDisconnected, mgr.State())

	// Give any stray reconnect timer a chance to misfire
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateDisconnected, mgr.State())
	assert.Zero(t, mgr.Session().ReconnectAttempts)

	// Disconnect is idempotent
	require.NoError(t, mgr.Disconnect())
}

func TestManagerNewCycleResetsSession(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		acceptSession(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mgr := newTestManager(t, testConfig(url))
	require.NoError(t, mgr.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return mgr.State() == StateAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := mgr.SendTypingPattern([]Keystroke{{Key: "a"}}, "")
	require.True(t, ok)
	first := mgr.Session()
	assert.GreaterOrEqual(t, first.MessagesSent, int64(2)) // connect + pattern

	require.NoError(t, mgr.Disconnect())
	require.NoError(t, mgr.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return mgr.State() == StateAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	second := mgr.Session()
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Less(t, second.MessagesSent, first.MessagesSent)

	seq, ok := mgr.SendTypingPattern([]Keystroke{{Key: "b"}}, "")
	require.True(t, ok)
	assert.Equal(t, int64(1), seq) // sequence restarts with the new session
}

func TestManagerConnectWatchdog(t *testing.T) {
	// A listener that accepts TCP but never speaks websocket keeps the dial
	// hanging; the watchdog has to cut it off.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	cfg := testConfig("ws://" + ln.Addr().String())
	cfg.ConnectTimeout = 50 * time.Millisecond
	cfg.HandshakeTimeout = 5 * time.Second
	cfg.Reconnect.MaxAttempts = 0
	mgr := newTestManager(t, cfg)

	require.NoError(t, mgr.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return mgr.State() == StateError
	}, 3*time.Second, 10*time.Millisecond)
}

func TestManagerStateNotifications(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		acceptSession(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mgr := newTestManager(t, testConfig(url))

	seen := make(chan ConnState, 16)
	mgr.OnStateChange(func(state ConnState) { seen <- state })

	require.NoError(t, mgr.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return mgr.State() == StateAuthenticated
	}, 2*time.Second, 10*time.Millisecond)

	states := drainStates(seen)
	assert.Contains(t, states, StateConnecting)
	assert.Contains(t, states, StateAuthenticated)
}

func drainStates(ch chan ConnState) []ConnState {
	var states []ConnState
	for {
		select {
		case s := <-ch:
			states = append(states, s)
		default:
			return states
		}
	}
}

// unmarshalBoth decodes the same payload into an envelope and a typed message.
func unmarshalBoth(data []byte, env *envelope, msg any) error {
	if err := json.Unmarshal(data, env); err != nil {
		return err
	}
	return json.Unmarshal(data, msg)
}
