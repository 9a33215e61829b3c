// Package vibemusic is the client-side streaming agent that turns keystroke
// timing into a live emotion signal.
//
// The agent captures keyboard timing events locally, reduces them into
// bounded statistical windows, streams typing patterns to a remote emotion
// analyzer over a websocket session, and aggregates the analyzer's
// 4-dimensional emotion vector (energy, valence, tension, focus) into a
// stable, quality-scored state for consumers.
//
// # Architecture
//
// Four lifecycle-managed components connected by an in-process broker:
//
//	┌──────────────────────────────────────┐
//	│            Coordinator               │  Orchestration, pub/sub broker,
//	│  (start, stop, route, snapshot)      │  delivery throttling, NATS bridge
//	└──────────────────────────────────────┘
//	      ↓ orchestrates
//	┌──────────┐   ┌────────────┐   ┌──────────┐
//	│ Capture  │ → │ Transport  │ → │ Emotion  │
//	│ Engine   │   │  Session   │   │Aggregator│
//	└──────────┘   └────────────┘   └──────────┘
//	 key events     websocket to     emotion samples,
//	 ring buffer,   analyzer, auto   smoothing, trends,
//	 pattern math   reconnect        quality scoring
//
// Data flows one way: key events enter the capture engine, the coordinator
// forwards at most one typing pattern per delivery tick to the transport
// session, and inbound emotion updates land in the aggregator. Consumers
// subscribe to coordinator events or poll an immutable Snapshot.
//
// # Packages
//
// Pipeline components:
//   - capture: keystroke ingestion, ring-buffered history, windowed pattern
//     analysis (speed, rhythm, pauses) on a worker pool
//   - transport: websocket session state machine, wire protocol codec,
//     heartbeats, watchdog, bounded reconnect with backoff
//   - emotion: sample clamping, bounded history, smoothing, trend detection,
//     dominant-emotion summary, data-quality scoring
//   - coordinator: component lifecycle, event broker, inbound routing,
//     optional NATS republishing for out-of-process consumers
//
// Infrastructure:
//   - component: lifecycle and discovery contracts, structured logging with
//     optional NATS log publishing
//   - config: layered JSON configuration with env overrides
//   - errors: classified error handling (transient, invalid, fatal)
//   - metric: Prometheus registry and scrape endpoint
//
// Utilities:
//   - pkg/buffer: generic circular buffer with overflow policies
//   - pkg/retry: backoff policies with jitter
//   - pkg/worker: bounded worker pools
//   - pkg/timestamp: unix-millisecond time helpers
//
// # Binary
//
// cmd/vibemusic-agent wires the pipeline from a JSON config file:
//
//	vibemusic-agent --config configs/agent.json
//	VIBEMUSIC_SESSION_TOKEN=... vibemusic-agent --log-level=debug
//
// The agent runs until SIGINT/SIGTERM, then shuts the pipeline down in
// reverse order within the configured timeout.
package vibemusic
