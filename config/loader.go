package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// maxConfigSize caps config file reads.
const maxConfigSize = 1 << 20 // 1 MiB

// maxJSONDepth bounds nesting to reject pathological input.
const maxJSONDepth = 16

// durationKeys are the JSON keys whose string values are parsed as
// time.Duration before unmarshaling (e.g. "33ms", "10s").
var durationKeys = map[string]bool{
	"reconnect_wait":     true,
	"analysis_interval":  true,
	"debounce_interval":  true,
	"latency_ceiling":    true,
	"connect_timeout":    true,
	"handshake_timeout":  true,
	"heartbeat_interval": true,
	"delivery_interval":  true,
	"initial_delay":      true,
	"max_delay":          true,
}

// Loader handles configuration loading with layers and overrides. Later
// layers override earlier ones field by field.
type Loader struct {
	layers    []string
	envPrefix string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{envPrefix: "VIBEMUSIC"}
}

// AddLayer adds a configuration file layer.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// LoadFile loads configuration from a single file.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers, then applies environment
// overrides. The result is not yet validated; callers run Validate.
func (l *Loader) Load() (*Config, error) {
	cfg := l.getDefaults()

	for _, path := range l.layers {
		raw, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, raw)
	}

	l.applyEnvOverrides(cfg)
	return cfg, nil
}

// getDefaults returns the default configuration.
func (l *Loader) getDefaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:        "vibemusic-agent",
			Environment: "dev",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		NATS: NATSConfig{
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
	}
}

// loadRawJSON reads one config file into a map, converting duration strings.
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	parseDurations(raw)
	return raw, nil
}

// mergeFromMap merges a raw map over the base config, only overriding fields
// present in the map.
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return base
	}
	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}
	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// parseDurations walks the raw map and converts duration strings under the
// known duration keys into nanosecond numbers for unmarshaling.
func parseDurations(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			parseDurations(val)
		case string:
			if durationKeys[k] {
				if d, err := time.ParseDuration(val); err == nil {
					m[k] = d.Nanoseconds()
				}
			}
		}
	}
}

// applyEnvOverrides applies environment variable overrides on top of the
// merged config.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_ANALYZER_URL"); val != "" {
		cfg.Transport.URL = val
	}
	if val := os.Getenv(l.envPrefix + "_SESSION_TOKEN"); val != "" {
		cfg.Transport.SessionToken = val
	}
	if val := os.Getenv(l.envPrefix + "_AGENT_NAME"); val != "" {
		cfg.Agent.Name = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_URLS"); val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	if val := os.Getenv(l.envPrefix + "_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}
	if val := os.Getenv(l.envPrefix + "_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

// safeReadFile reads a config file with a path and size check.
func safeReadFile(path string) ([]byte, error) {
	clean := filepath.Clean(path)

	info, err := os.Stat(clean)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", clean)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("%s exceeds the %d byte config limit", clean, maxConfigSize)
	}

	return os.ReadFile(clean)
}

// validateJSONDepth rejects JSON nested deeper than maxJSONDepth.
func validateJSONDepth(data []byte) error {
	depth := 0
	dec := json.NewDecoder(strings.NewReader(string(data)))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil // syntax errors surface in the real unmarshal
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("nesting exceeds %d levels", maxJSONDepth)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}
