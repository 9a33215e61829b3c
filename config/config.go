// Package config loads and validates the agent configuration: JSON file
// layers with deep merge, duration string parsing, and environment variable
// overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Kojaewoong0504/VibeMusic-sub000/capture"
	"github.com/Kojaewoong0504/VibeMusic-sub000/coordinator"
	"github.com/Kojaewoong0504/VibeMusic-sub000/emotion"
	"github.com/Kojaewoong0504/VibeMusic-sub000/transport"
)

// Config is the complete agent configuration.
type Config struct {
	Version     string             `json:"version,omitempty"`
	Agent       AgentConfig        `json:"agent"`
	NATS        NATSConfig         `json:"nats,omitempty"`
	Metrics     MetricsConfig      `json:"metrics,omitempty"`
	Capture     capture.Config     `json:"capture,omitempty"`
	Transport   transport.Config   `json:"transport"`
	Emotion     emotion.Config     `json:"emotion,omitempty"`
	Coordinator coordinator.Config `json:"coordinator,omitempty"`
}

// AgentConfig identifies this agent instance.
type AgentConfig struct {
	Name        string            `json:"name,omitempty"`
	Environment string            `json:"environment,omitempty"` // "prod", "dev", "test"
	ClientInfo  map[string]string `json:"client_info,omitempty"`
}

// NATSConfig defines the optional NATS connection for log publishing and the
// coordinator bridge. An empty URL list disables NATS entirely.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// Enabled reports whether a NATS connection is configured.
func (n NATSConfig) Enabled() bool {
	return len(n.URLs) > 0
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Validate checks the whole tree and normalizes component sections.
func (c *Config) Validate() error {
	if c.Agent.Name == "" {
		return errors.New("agent.name is required")
	}
	if !isValidSubjectPart(c.Agent.Name) {
		return fmt.Errorf(
			"agent.name %q is not valid (must be alphanumeric with dots, dashes, underscores)",
			c.Agent.Name)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port %d is out of range", c.Metrics.Port)
		}
		if c.Metrics.Path == "" {
			c.Metrics.Path = "/metrics"
		}
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := c.Emotion.Validate(); err != nil {
		return fmt.Errorf("emotion: %w", err)
	}
	if err := c.Coordinator.Validate(); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// String returns a JSON representation with the session token masked.
func (c *Config) String() string {
	clone := c.Clone()
	if clone.Transport.SessionToken != "" {
		clone.Transport.SessionToken = "***"
	}
	if clone.NATS.Password != "" {
		clone.NATS.Password = "***"
	}
	if clone.NATS.Token != "" {
		clone.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(clone, "", "  ")
	return string(data)
}

// SafeConfig provides thread-safe access to configuration.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// isValidSubjectPart checks that a name is safe for NATS subjects and metric
// labels: alphanumeric plus dots, dashes, underscores.
func isValidSubjectPart(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return !strings.HasPrefix(s, ".") && !strings.HasSuffix(s, ".")
}
