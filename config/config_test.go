package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `{
	"agent": {"name": "agent-1", "environment": "test"},
	"transport": {
		"url": "wss://analyzer.example.com/ws",
		"session_token": "secret-token",
		"connect_timeout": "7s",
		"heartbeat_interval": "15s",
		"reconnect": {"max_attempts": 3, "initial_delay": "2s", "max_delay": "20s", "multiplier": 1.5}
	},
	"capture": {"buffer_capacity": 512, "analysis_interval": "25ms"},
	"coordinator": {"delivery_interval": "50ms"}
}`

func TestLoaderLoadFile(t *testing.T) {
	path := writeConfig(t, "config.json", validConfig)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "agent-1", cfg.Agent.Name)
	assert.Equal(t, "wss://analyzer.example.com/ws", cfg.Transport.URL)
	assert.Equal(t, 7*time.Second, cfg.Transport.ConnectTimeout)
	assert.Equal(t, 15*time.Second, cfg.Transport.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, cfg.Transport.Reconnect.InitialDelay)
	assert.Equal(t, 3, cfg.Transport.Reconnect.MaxAttempts)
	assert.Equal(t, 512, cfg.Capture.BufferCapacity)
	assert.Equal(t, 25*time.Millisecond, cfg.Capture.AnalysisInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.Coordinator.DeliveryInterval)

	// Defaults survive where the file is silent
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, 150, cfg.Emotion.HistoryCapacity)
}

func TestLoaderLayerMerge(t *testing.T) {
	base := writeConfig(t, "base.json", validConfig)
	override := writeConfig(t, "override.json", `{
		"transport": {"url": "wss://staging.example.com/ws"},
		"metrics": {"port": 9999}
	}`)

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)

	cfg, err := loader.Load()
	require.NoError(t, err)

	// Overridden fields
	assert.Equal(t, "wss://staging.example.com/ws", cfg.Transport.URL)
	assert.Equal(t, 9999, cfg.Metrics.Port)
	// Untouched fields from the base layer
	assert.Equal(t, "secret-token", cfg.Transport.SessionToken)
	assert.Equal(t, 512, cfg.Capture.BufferCapacity)
}

func TestLoaderEnvOverrides(t *testing.T) {
	path := writeConfig(t, "config.json", validConfig)

	t.Setenv("VIBEMUSIC_ANALYZER_URL", "wss://env.example.com/ws")
	t.Setenv("VIBEMUSIC_SESSION_TOKEN", "env-token")
	t.Setenv("VIBEMUSIC_NATS_URLS", "nats://a:4222,nats://b:4222")
	t.Setenv("VIBEMUSIC_METRICS_PORT", "7070")

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://env.example.com/ws", cfg.Transport.URL)
	assert.Equal(t, "env-token", cfg.Transport.SessionToken)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, 7070, cfg.Metrics.Port)
	assert.True(t, cfg.NATS.Enabled())
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader().LoadFile("/nonexistent/config.json")
	assert.Error(t, err)
}

func TestLoaderRejectsDeepNesting(t *testing.T) {
	deep := `{"a":{"a":{"a":{"a":{"a":{"a":{"a":{"a":{"a":{"a":{"a":{"a":{"a":{"a":{"a":{"a":{"a":1}}}}}}}}}}}}}}}}}`
	path := writeConfig(t, "deep.json", deep)

	_, err := NewLoader().LoadFile(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{
		Agent: AgentConfig{Name: "agent-1"},
	}
	cfg.Transport.URL = "wss://analyzer.example.com/ws"
	cfg.Transport.SessionToken = "tok"
	require.NoError(t, cfg.Validate())

	// Component defaults were normalized in place
	assert.Equal(t, 1024, cfg.Capture.BufferCapacity)
	assert.Equal(t, 100*time.Millisecond, cfg.Coordinator.DeliveryInterval)

	missing := &Config{}
	missing.Transport.URL = "wss://x/ws"
	missing.Transport.SessionToken = "tok"
	assert.Error(t, missing.Validate(), "agent name required")

	badName := &Config{Agent: AgentConfig{Name: "bad name!"}}
	badName.Transport.URL = "wss://x/ws"
	badName.Transport.SessionToken = "tok"
	assert.Error(t, badName.Validate())

	noToken := &Config{Agent: AgentConfig{Name: "agent-1"}}
	noToken.Transport.URL = "wss://x/ws"
	assert.Error(t, noToken.Validate())

	badScheme := &Config{Agent: AgentConfig{Name: "agent-1"}}
	badScheme.Transport.URL = "https://x/ws"
	badScheme.Transport.SessionToken = "tok"
	assert.Error(t, badScheme.Validate())

	badPort := &Config{Agent: AgentConfig{Name: "agent-1"}, Metrics: MetricsConfig{Enabled: true, Port: -1}}
	badPort.Transport.URL = "wss://x/ws"
	badPort.Transport.SessionToken = "tok"
	assert.Error(t, badPort.Validate())
}

func TestConfigStringMasksSecrets(t *testing.T) {
	cfg := &Config{Agent: AgentConfig{Name: "agent-1"}}
	cfg.Transport.URL = "wss://x/ws"
	cfg.Transport.SessionToken = "super-secret"
	cfg.NATS.Token = "nats-secret"

	s := cfg.String()
	assert.NotContains(t, s, "super-secret")
	assert.NotContains(t, s, "nats-secret")
	assert.Contains(t, s, "***")
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{Agent: AgentConfig{Name: "agent-1", ClientInfo: map[string]string{"os": "linux"}}}
	clone := cfg.Clone()

	clone.Agent.Name = "changed"
	clone.Agent.ClientInfo["os"] = "windows"

	assert.Equal(t, "agent-1", cfg.Agent.Name)
	assert.Equal(t, "linux", cfg.Agent.ClientInfo["os"])
}

func TestSafeConfig(t *testing.T) {
	base := &Config{Agent: AgentConfig{Name: "agent-1"}}
	base.Transport.URL = "wss://x/ws"
	base.Transport.SessionToken = "tok"

	safe := NewSafeConfig(base)
	got := safe.Get()
	assert.Equal(t, "agent-1", got.Agent.Name)

	// Mutating the copy does not touch the stored config
	got.Agent.Name = "mutated"
	assert.Equal(t, "agent-1", safe.Get().Agent.Name)

	next := base.Clone()
	next.Agent.Name = "agent-2"
	require.NoError(t, safe.Update(next))
	assert.Equal(t, "agent-2", safe.Get().Agent.Name)

	assert.Error(t, safe.Update(nil))
	assert.Error(t, safe.Update(&Config{})) // fails validation
}
