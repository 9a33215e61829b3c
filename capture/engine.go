// Package capture implements the input capture and windowing engine: it turns
// raw key-press/release events into timestamped records in a bounded ring
// buffer and periodically derives a rhythm/speed/pause pattern snapshot
// without blocking the ingestion path.
package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Kojaewoong0504/VibeMusic-sub000/component"
	"github.com/Kojaewoong0504/VibeMusic-sub000/errors"
	"github.com/Kojaewoong0504/VibeMusic-sub000/metric"
	"github.com/Kojaewoong0504/VibeMusic-sub000/pkg/buffer"
	"github.com/Kojaewoong0504/VibeMusic-sub000/pkg/timestamp"
	"github.com/Kojaewoong0504/VibeMusic-sub000/pkg/worker"
)

// analysisJob carries a copied event window into the analysis pool.
// No mutable state is shared with the ingestion path.
type analysisJob struct {
	events []KeyEvent
}

// Engine captures key events into a ring buffer and maintains the latest
// pattern snapshot. Ingestion never blocks on analysis: recomputation is
// throttled, and runs on a worker pool when available or inline behind a
// debounce otherwise.
type Engine struct {
	name   string
	config Config
	buffer buffer.Buffer[KeyEvent]
	pool   atomic.Pointer[worker.Pool[analysisJob]]
	logger *component.Logger

	// Latest derived state
	patternMu sync.RWMutex
	latest    *PatternSnapshot

	// Most recent raw event, for the coordinator's latest-only delivery
	lastEventMu  sync.RWMutex
	lastEvent    KeyEvent
	lastEventSeq atomic.Int64

	// Throttle/debounce state
	analysisMu    sync.Mutex
	lastAnalysis  time.Time
	debounceTimer *time.Timer
	workerHealthy atomic.Bool

	// Lifecycle management
	lifecycleMu sync.Mutex
	started     atomic.Bool
	cancel      context.CancelFunc
	startNanos  atomic.Int64

	// Statistics (atomic)
	eventsProcessed int64
	latencyTotalNs  int64
	maxLatencyNs    int64
	latencyBreaches int64
	errorCount      atomic.Int64

	metrics *Metrics
}

// Ensure Engine implements the lifecycle contract
var _ component.Lifecycle = (*Engine)(nil)

// EngineStats is the engine's observable metrics snapshot.
type EngineStats struct {
	EventsProcessed      int64   `json:"events_processed"`
	AvgLatencyMs         float64 `json:"avg_latency_ms"`
	MaxLatencyMs         float64 `json:"max_latency_ms"`
	ProcessingRate       float64 `json:"processing_rate"`
	BufferUtilizationPct float64 `json:"buffer_utilization_pct"`
	LatencyBreaches      int64   `json:"latency_breaches"`
}

// NewEngine creates a capture engine with the given configuration.
func NewEngine(name string, cfg Config, registry *metric.Registry, logger *component.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var bufferOpts []buffer.Option[KeyEvent]
	if registry != nil {
		bufferOpts = append(bufferOpts, buffer.WithMetrics[KeyEvent](registry, name))
	}

	ring, err := buffer.NewRing(cfg.BufferCapacity, bufferOpts...)
	if err != nil {
		return nil, errors.WrapFatal(err, "capture", "NewEngine", "create event ring buffer")
	}

	return &Engine{
		name:    name,
		config:  cfg,
		buffer:  ring,
		logger:  logger,
		metrics: newMetrics(registry, name),
	}, nil
}

// Meta returns component metadata
func (e *Engine) Meta() component.Metadata {
	return component.Metadata{
		Name:        e.name,
		Type:        "capture",
		Description: "Keyboard input capture and windowing engine",
		Version:     "1.0.0",
	}
}

// Health returns current health status
func (e *Engine) Health() component.HealthStatus {
	started := e.started.Load()
	uptime := time.Duration(0)
	if start := e.startNanos.Load(); started && start > 0 {
		uptime = time.Since(time.Unix(0, start))
	}

	return component.HealthStatus{
		Healthy:    started,
		LastCheck:  time.Now(),
		ErrorCount: int(e.errorCount.Load()),
		Uptime:     uptime,
	}
}

// DataFlow returns current data flow metrics
func (e *Engine) DataFlow() component.FlowMetrics {
	events := atomic.LoadInt64(&e.eventsProcessed)

	var perSecond float64
	if start := e.startNanos.Load(); start > 0 {
		if uptime := time.Since(time.Unix(0, start)).Seconds(); uptime > 0 {
			perSecond = float64(events) / uptime
		}
	}

	lastActivity := time.Time{}
	e.lastEventMu.RLock()
	if e.lastEvent.Timestamp != 0 {
		lastActivity = timestamp.FromUnixMs(e.lastEvent.Timestamp)
	}
	e.lastEventMu.RUnlock()

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		LastActivity:      lastActivity,
	}
}

// Start begins capturing. Starting an already-running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.started.Load() {
		return nil
	}

	engineCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	// A stopped pool cannot be restarted, so each capture cycle gets its own.
	if !e.config.DisableWorker {
		pool := worker.NewPool(1, e.config.WorkerQueueSize, e.processJob)
		if err := pool.Start(engineCtx); err != nil {
			// Analyzer offload is optional: fall back to inline analysis
			e.workerHealthy.Store(false)
			e.errorCount.Add(1)
			if e.logger != nil {
				e.logger.Error("pattern analyzer pool failed to start, falling back to inline analysis", err)
			}
		} else {
			e.pool.Store(pool)
			e.workerHealthy.Store(true)
		}
	}

	e.startNanos.Store(time.Now().UnixNano())
	e.started.Store(true)
	if e.logger != nil {
		e.logger.Info("capture engine started")
	}
	return nil
}

// Stop halts capturing and cancels all pending analysis. Stopping an idle
// engine is a no-op; Stop is idempotent.
func (e *Engine) Stop(timeout time.Duration) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if !e.started.Load() {
		return nil
	}
	e.started.Store(false)

	e.analysisMu.Lock()
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
		e.debounceTimer = nil
	}
	e.analysisMu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}

	e.workerHealthy.Store(false)
	if pool := e.pool.Swap(nil); pool != nil {
		if err := pool.Stop(timeout); err != nil {
			return errors.WrapTransient(err, "capture", "Stop", "stop analyzer pool")
		}
	}

	if e.logger != nil {
		e.logger.Info("capture engine stopped")
	}
	return nil
}

// Reset clears the buffer, the latest pattern, and all counters.
// Valid in any lifecycle state.
func (e *Engine) Reset() {
	e.buffer.Clear()

	e.patternMu.Lock()
	e.latest = nil
	e.patternMu.Unlock()

	e.lastEventMu.Lock()
	e.lastEvent = KeyEvent{}
	e.lastEventMu.Unlock()

	atomic.StoreInt64(&e.eventsProcessed, 0)
	atomic.StoreInt64(&e.latencyTotalNs, 0)
	atomic.StoreInt64(&e.maxLatencyNs, 0)
	atomic.StoreInt64(&e.latencyBreaches, 0)

	e.analysisMu.Lock()
	e.lastAnalysis = time.Time{}
	e.analysisMu.Unlock()
}

// OnEvent ingests a raw device event. Events arriving while the engine is
// idle are discarded. The call never blocks on analysis and never drops an
// accepted event, even when the latency ceiling is breached.
func (e *Engine) OnEvent(ev KeyEvent) {
	if !e.started.Load() {
		return
	}

	ingest := time.Now()
	if ev.Timestamp == 0 {
		ev.Timestamp = timestamp.ToUnixMs(ingest)
	}

	_ = e.buffer.Write(ev)
	latency := time.Since(ingest)

	atomic.AddInt64(&e.eventsProcessed, 1)
	atomic.AddInt64(&e.latencyTotalNs, latency.Nanoseconds())
	for {
		prev := atomic.LoadInt64(&e.maxLatencyNs)
		if latency.Nanoseconds() <= prev || atomic.CompareAndSwapInt64(&e.maxLatencyNs, prev, latency.Nanoseconds()) {
			break
		}
	}

	e.lastEventMu.Lock()
	e.lastEvent = ev
	e.lastEventMu.Unlock()
	e.lastEventSeq.Add(1)

	if e.metrics != nil {
		e.metrics.eventsProcessed.Inc()
		e.metrics.ingestLatency.Observe(latency.Seconds())
	}

	if latency > e.config.LatencyCeiling {
		atomic.AddInt64(&e.latencyBreaches, 1)
		if e.metrics != nil {
			e.metrics.latencyBreaches.Inc()
		}
		if e.logger != nil {
			e.logger.Warn(fmt.Sprintf("ingestion latency %v exceeded ceiling %v", latency, e.config.LatencyCeiling))
		}
	}

	e.maybeAnalyze()
}

// LatestPattern returns the most recent pattern snapshot, or nil when no
// analysis has completed yet. The snapshot is immutable.
func (e *Engine) LatestPattern() *PatternSnapshot {
	e.patternMu.RLock()
	defer e.patternMu.RUnlock()
	return e.latest
}

// LatestEvent returns the most recently ingested event together with its
// delivery sequence number. The sequence lets a consumer detect whether a
// new event arrived since its last poll.
func (e *Engine) LatestEvent() (KeyEvent, int64, bool) {
	seq := e.lastEventSeq.Load()

	e.lastEventMu.RLock()
	ev := e.lastEvent
	e.lastEventMu.RUnlock()

	if ev.Timestamp == 0 {
		return KeyEvent{}, 0, false
	}
	return ev, seq, true
}

// Stats returns the engine's observable metrics snapshot.
func (e *Engine) Stats() EngineStats {
	events := atomic.LoadInt64(&e.eventsProcessed)
	totalNs := atomic.LoadInt64(&e.latencyTotalNs)
	maxNs := atomic.LoadInt64(&e.maxLatencyNs)

	var avgMs float64
	if events > 0 {
		avgMs = float64(totalNs) / float64(events) / 1e6
	}

	var rate float64
	if start := e.startNanos.Load(); start > 0 {
		if uptime := time.Since(time.Unix(0, start)).Seconds(); uptime > 0 {
			rate = float64(events) / uptime
		}
	}

	return EngineStats{
		EventsProcessed:      events,
		AvgLatencyMs:         avgMs,
		MaxLatencyMs:         float64(maxNs) / 1e6,
		ProcessingRate:       rate,
		BufferUtilizationPct: float64(e.buffer.Size()) / float64(e.buffer.Capacity()) * 100,
		LatencyBreaches:      atomic.LoadInt64(&e.latencyBreaches),
	}
}

// maybeAnalyze triggers a pattern recomputation unless one ran within the
// analysis interval. The window is copied before leaving the ingestion path.
func (e *Engine) maybeAnalyze() {
	e.analysisMu.Lock()
	if time.Since(e.lastAnalysis) < e.config.AnalysisInterval {
		e.analysisMu.Unlock()
		return
	}
	e.lastAnalysis = time.Now()
	e.analysisMu.Unlock()

	window := e.windowEvents()

	if pool := e.pool.Load(); pool != nil && e.workerHealthy.Load() {
		if err := pool.Submit(analysisJob{events: window}); err == nil {
			return
		}
		// Queue saturated or pool gone: recover inline
		if e.metrics != nil {
			e.metrics.workerFallbacks.Inc()
		}
	}

	e.scheduleInline()
}

// scheduleInline debounces an inline analysis pass so bursts of fast typing
// collapse into a single recomputation.
func (e *Engine) scheduleInline() {
	e.analysisMu.Lock()
	defer e.analysisMu.Unlock()

	if e.debounceTimer != nil {
		return // a pass is already pending
	}

	e.debounceTimer = time.AfterFunc(e.config.DebounceInterval, func() {
		e.analysisMu.Lock()
		e.debounceTimer = nil
		e.analysisMu.Unlock()

		if !e.started.Load() {
			return
		}
		e.analyze(e.windowEvents(), "inline")
	})
}

// windowEvents returns a copy of the buffered events inside the trailing
// analysis window.
func (e *Engine) windowEvents() []KeyEvent {
	cutoff := timestamp.Now() - e.config.WindowMs

	all := e.buffer.Snapshot()
	start := 0
	for start < len(all) && all[start].Timestamp < cutoff {
		start++
	}
	return all[start:]
}

// processJob is the worker pool processor for offloaded analysis.
func (e *Engine) processJob(_ context.Context, job analysisJob) error {
	e.analyze(job.events, "worker")
	return nil
}

func (e *Engine) analyze(events []KeyEvent, mode string) {
	snapshot := ComputePattern(events, e.config.PauseThresholdMs)

	e.patternMu.Lock()
	e.latest = &snapshot
	e.patternMu.Unlock()

	if e.metrics != nil {
		e.metrics.analysisRuns.WithLabelValues(mode).Inc()
	}
}
