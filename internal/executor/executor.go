// Package executor implements the Parallel Executor (spec.md §4.3): the
// per-run engine that resolves a mapping, builds a ChunkPlan, drives a
// bounded worker pool over the Retry Controller and Chunk Processor, and
// closes the run's RunLog with the outcome. It is the glue between
// internal/queue (which hands it claimed requests), internal/checkpoint,
// internal/executor/plan, internal/executor/retry,
// internal/executor/chunkproc, and internal/progress.
package executor

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/etlcore/orchestrator/internal/checkpoint"
	"github.com/etlcore/orchestrator/internal/connpool"
	"github.com/etlcore/orchestrator/internal/connreg"
	"github.com/etlcore/orchestrator/internal/dialect"
	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/executor/chunkproc"
	"github.com/etlcore/orchestrator/internal/executor/plan"
	"github.com/etlcore/orchestrator/internal/executor/retry"
	"github.com/etlcore/orchestrator/internal/metadata"
	"github.com/etlcore/orchestrator/internal/progress"
	"github.com/etlcore/orchestrator/internal/queue"
)

// Config carries the tunables spec.md §4.3 and §5 name.
type Config struct {
	MaxWorkers          int           // default min(CPU-1, 8)
	MinRowsForParallel  int64         // default 100_000
	LeaseDuration       time.Duration // default 60s
	ConnectAcquireWait  time.Duration
	RowErrorCap         int
	ProgressMinInterval time.Duration // default 2s
	CancelGracePeriod   time.Duration // default 30s

	RetryMaxRetries   int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMultiplier   float64
}

// DefaultConfig matches spec.md §4.3/§4.7/§5's stated defaults.
func DefaultConfig() Config {
	w := runtime.NumCPU() - 1
	if w > 8 {
		w = 8
	}
	if w < 1 {
		w = 1
	}
	return Config{
		MaxWorkers:          w,
		MinRowsForParallel:  100_000,
		LeaseDuration:       60 * time.Second,
		ConnectAcquireWait:  10 * time.Second,
		RowErrorCap:         1000,
		ProgressMinInterval: 2 * time.Second,
		CancelGracePeriod:   30 * time.Second,
		RetryMaxRetries:     3,
		RetryInitialDelay:   1 * time.Second,
		RetryMaxDelay:       60 * time.Second,
		RetryMultiplier:     2,
	}
}

// Executor runs claimed JobRequests to completion. cmd/orchestrator
// constructs one Executor and shares it with the dispatcher loop, which
// invokes RunRequest concurrently for each claimed request.
type Executor struct {
	cfg Config

	gateway    *metadata.Gateway
	queue      *queue.Queue
	checkpoint *checkpoint.Controller
	planner    *plan.Planner
	processor  *chunkproc.Processor
	stats      *chunkproc.Stats
	pool       *connpool.Manager
	reg        *connreg.Registry

	logger *slog.Logger

	mu     sync.Mutex
	sinks  []progress.Sink
	active map[string]*progress.Tracker // requestID -> live tracker, for status()'s snapshot
}

func New(cfg Config, gw *metadata.Gateway, q *queue.Queue, pool *connpool.Manager, reg *connreg.Registry, logger *slog.Logger) *Executor {
	stats := chunkproc.NewStats(pool, reg, cfg.ConnectAcquireWait)
	return &Executor{
		cfg:        cfg,
		gateway:    gw,
		queue:      q,
		checkpoint: checkpoint.New(gw.RunLogs),
		planner:    plan.New(stats),
		processor:  chunkproc.New(pool, cfg.ConnectAcquireWait, cfg.RowErrorCap),
		stats:      stats,
		pool:       pool,
		reg:        reg,
		logger:     logger.With("component", "executor"),
		active:     make(map[string]*progress.Tracker),
	}
}

func (e *Executor) retryController() *retry.Controller {
	return retry.New(retry.Config{
		MaxRetries:   e.cfg.RetryMaxRetries,
		InitialDelay: e.cfg.RetryInitialDelay,
		MaxDelay:     e.cfg.RetryMaxDelay,
		Multiplier:   e.cfg.RetryMultiplier,
	})
}

func (e *Executor) dialectFor(connectionRef string) (dialect.Dialect, error) {
	entry, err := e.reg.Get(connectionRef)
	if err != nil {
		return nil, err
	}
	return dialect.ByName(entry.Dialect)
}

// RegisterProgressSink adds an additional destination for every run's
// progress.Snapshot publishes, alongside the mandatory RunLog write —
// spec.md §6.2's optional "register-progress-sink(sink)" operation.
func (e *Executor) RegisterProgressSink(sink progress.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sink)
}

// Snapshot returns the live progress.Snapshot for requestID's in-flight
// run, if one is currently executing — the worker-facing status() call's
// optional progress-snapshot field (spec.md §6.2).
func (e *Executor) Snapshot(requestID string) (progress.Snapshot, bool) {
	e.mu.Lock()
	tracker, ok := e.active[requestID]
	e.mu.Unlock()
	if !ok {
		return progress.Snapshot{}, false
	}
	return tracker.Snapshot(), true
}

func (e *Executor) trackRun(requestID string, tracker *progress.Tracker) {
	e.mu.Lock()
	e.active[requestID] = tracker
	e.mu.Unlock()
}

func (e *Executor) untrackRun(requestID string) {
	e.mu.Lock()
	delete(e.active, requestID)
	e.mu.Unlock()
}

// progressSink wires progress.Tracker publishes to the RunLog gateway and
// fans them out to every sink registered via RegisterProgressSink.
func (e *Executor) progressSink() progress.Sink {
	e.mu.Lock()
	extra := make([]progress.Sink, len(e.sinks))
	copy(extra, e.sinks)
	e.mu.Unlock()

	sinks := append([]progress.Sink{progress.NewRunLogSink(e.gateway.RunLogs, e.logger)}, extra...)
	return progress.FanOut(sinks)
}

// cancelled reports whether requestID has moved to CANCELLED since the
// run started, polled by the coordinator between result drains (spec.md
// §5 "Cancellation").
func (e *Executor) cancelled(ctx context.Context, requestID string) bool {
	req, err := e.gateway.Requests.GetByID(ctx, requestID)
	if err != nil {
		return false
	}
	return req.Status == domain.StatusCancelled
}
