package transport

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Kojaewoong0504/VibeMusic-sub000/errors"
	"github.com/Kojaewoong0504/VibeMusic-sub000/pkg/retry"
)

// Config controls the websocket session manager.
type Config struct {
	// URL is the analyzer endpoint (ws:// or wss://). Required.
	URL string `json:"url"`

	// SessionToken authenticates the connect message. Required.
	SessionToken string `json:"session_token"`

	// ClientInfo is attached to the connect message verbatim.
	ClientInfo map[string]string `json:"client_info,omitempty"`

	// ConnectTimeout bounds how long the session may sit in the connecting
	// state before the watchdog force-closes it. Default 10s.
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty"`

	// HandshakeTimeout is passed to the websocket dialer. Default 5s.
	HandshakeTimeout time.Duration `json:"handshake_timeout,omitempty"`

	// HeartbeatInterval is the keepalive cadence while connected. Default 30s.
	HeartbeatInterval time.Duration `json:"heartbeat_interval,omitempty"`

	// Reconnect shapes the backoff between reconnect attempts after an
	// unexpected close. Zero value means retry.Reconnect() defaults.
	Reconnect retry.Config `json:"reconnect,omitempty"`
}

// DefaultConfig returns a config with standard timings; URL and SessionToken
// still have to be filled in.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    10 * time.Second,
		HandshakeTimeout:  5 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		Reconnect:         retry.Reconnect(),
	}
}

// Validate checks required fields and fills zero timings with defaults.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "transport", "Validate", "check endpoint URL")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.WrapInvalid(err, "transport", "Validate", "parse endpoint URL")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: scheme %q, want ws or wss", errors.ErrInvalidConfig, u.Scheme),
			"transport", "Validate", "check endpoint scheme")
	}
	if c.SessionToken == "" {
		return errors.WrapInvalid(errors.ErrMissingToken, "transport", "Validate", "check session token")
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.Reconnect.MaxAttempts == 0 && c.Reconnect.InitialDelay == 0 {
		c.Reconnect = retry.Reconnect()
	}
	return nil
}
