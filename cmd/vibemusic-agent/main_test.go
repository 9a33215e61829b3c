package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kojaewoong0504/VibeMusic-sub000/config"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "agent.json")
	body := `{
		"agent": {"name": "agent-test"},
		"metrics": {"enabled": false},
		"transport": {
			"url": "wss://analyzer.example.com/ws",
			"session_token": "test-token"
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestInitializeConfigurationReturnsSafeWrapper(t *testing.T) {
	t.Setenv("VIBEMUSIC_AGENT_NAME", "")
	t.Setenv("VIBEMUSIC_ANALYZER_URL", "")

	safeCfg, err := initializeConfiguration(&CLIConfig{ConfigPath: writeTestConfig(t)})
	require.NoError(t, err)

	cfg := safeCfg.Get()
	assert.Equal(t, "agent-test", cfg.Agent.Name)
	assert.Equal(t, "wss://analyzer.example.com/ws", cfg.Transport.URL)

	// Snapshots are deep copies: mutating one must not leak into the next.
	cfg.Agent.Name = "mutated"
	assert.Equal(t, "agent-test", safeCfg.Get().Agent.Name)
}

func TestInitializeConfigurationRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"agent": {"name": ""}}`), 0o600))

	_, err := initializeConfiguration(&CLIConfig{ConfigPath: path})
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestConnectNATSDisabled(t *testing.T) {
	nc, err := connectNATS(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, nc)
}

func TestConnectNATSRetriesBeforeFailing(t *testing.T) {
	cfg := &config.Config{
		NATS: config.NATSConfig{
			URLs:          []string{"nats://127.0.0.1:1"},
			MaxReconnects: 0,
			ReconnectWait: time.Millisecond,
		},
	}

	_, err := connectNATS(cfg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "connect to NATS")
	assert.ErrorContains(t, err, "after 3 attempts")
}
