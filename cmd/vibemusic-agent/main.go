// Package main implements the entry point for the VibeMusic agent. The
// agent captures keystroke timing, streams typing patterns to a remote
// emotion analyzer over websocket, and aggregates the returned emotion
// samples for local consumers.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Kojaewoong0504/VibeMusic-sub000/capture"
	"github.com/Kojaewoong0504/VibeMusic-sub000/component"
	"github.com/Kojaewoong0504/VibeMusic-sub000/config"
	"github.com/Kojaewoong0504/VibeMusic-sub000/coordinator"
	"github.com/Kojaewoong0504/VibeMusic-sub000/emotion"
	"github.com/Kojaewoong0504/VibeMusic-sub000/metric"
	"github.com/Kojaewoong0504/VibeMusic-sub000/pkg/retry"
	"github.com/Kojaewoong0504/VibeMusic-sub000/transport"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "vibemusic-agent"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	safeCfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	// Components get an immutable snapshot; the safe wrapper stays the
	// authoritative copy for anything that reloads later.
	cfg := safeCfg.Get()

	nc, err := connectNATS(cfg)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Close()
	}

	registry := metric.NewRegistry()
	metricsServer, err := startMetricsServer(cfg, registry)
	if err != nil {
		return err
	}
	if metricsServer != nil {
		defer func() { _ = metricsServer.Stop(5 * time.Second) }()
	}

	coord, err := buildPipeline(cfg, registry, nc)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	return runWithSignalHandling(coord, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting VibeMusic agent",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, false, nil
}

// initializeConfiguration loads and validates configuration
func initializeConfiguration(cliCfg *CLIConfig) (*config.SafeConfig, error) {
	cfg, err := config.NewLoader().LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config.NewSafeConfig(cfg), nil
}

// connectNATS opens the optional NATS connection for log publishing and the
// coordinator bridge. No configured URLs means no connection.
func connectNATS(cfg *config.Config) (*nats.Conn, error) {
	if !cfg.NATS.Enabled() {
		slog.Debug("NATS not configured, bridge and log publishing disabled")
		return nil, nil
	}

	opts := []nats.Option{
		nats.Name(appName),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, nats.Token(cfg.NATS.Token))
	}

	url := strings.Join(cfg.NATS.URLs, ",")
	slog.Info("Connecting to NATS", "urls", url)
	nc, err := retry.DoWithResult(context.Background(), retry.DefaultConfig(), func() (*nats.Conn, error) {
		conn, err := nats.Connect(url, opts...)
		if err != nil {
			if errors.Is(err, nats.ErrAuthorization) {
				return nil, retry.NonRetryable(err)
			}
			return nil, err
		}
		return conn, nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// startMetricsServer starts the Prometheus scrape endpoint when enabled.
func startMetricsServer(cfg *config.Config, registry *metric.Registry) (*metric.Server, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}

	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start metrics server: %w", err)
	}
	slog.Info("Metrics server started", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
	return server, nil
}

// buildPipeline wires capture, transport, and emotion under the coordinator.
func buildPipeline(cfg *config.Config, registry *metric.Registry, nc *nats.Conn) (*coordinator.Coordinator, error) {
	agentID := cfg.Agent.Name
	base := slog.Default()

	engine, err := capture.NewEngine("capture", cfg.Capture, registry,
		component.NewLogger("capture", agentID, nc, base))
	if err != nil {
		return nil, fmt.Errorf("create capture engine: %w", err)
	}

	transportCfg := cfg.Transport
	if transportCfg.ClientInfo == nil {
		transportCfg.ClientInfo = cfg.Agent.ClientInfo
	}
	session, err := transport.NewManager("transport", transportCfg, registry,
		component.NewLogger("transport", agentID, nc, base))
	if err != nil {
		return nil, fmt.Errorf("create session manager: %w", err)
	}

	emotions, err := emotion.NewAggregator("emotion", cfg.Emotion, registry,
		component.NewLogger("emotion", agentID, nc, base))
	if err != nil {
		return nil, fmt.Errorf("create emotion aggregator: %w", err)
	}

	return coordinator.New("coordinator", cfg.Coordinator, coordinator.Deps{
		Engine:   engine,
		Session:  session,
		Emotions: emotions,
		Registry: registry,
		Logger:   component.NewLogger("coordinator", agentID, nc, base),
		Bridge:   coordinator.NewBridge(nc),
	})
}

// runWithSignalHandling starts the pipeline and blocks until a shutdown
// signal arrives.
func runWithSignalHandling(coord *coordinator.Coordinator, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := coord.Start(signalCtx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	slog.Info("VibeMusic agent started")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := coord.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("VibeMusic agent shutdown complete")
	return nil
}
