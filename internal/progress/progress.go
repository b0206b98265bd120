// Package progress implements the Progress Tracker (spec.md §4.9):
// atomic per-run counters, percentage/eta/throughput snapshots, and a
// coalesced publish so a busy run doesn't hammer the metadata store.
package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is the point-in-time view spec.md §4.9 describes. Percentage
// is nil when estimatedTotal is unknown or zero — callers must handle
// that null rather than assume a value.
type Snapshot struct {
	RunID             string
	ChunksCompleted   int64
	ChunksFailed      int64
	RowsProcessed     int64
	RowsSucceeded     int64
	RowsFailed        int64
	Percentage        *float64
	Elapsed           time.Duration
	ETA               *time.Duration
	ThroughputPerSec  float64
}

// Sink receives published snapshots. The default sink writes to the
// RunLog row's counters (internal/metadata.RunLogGateway.UpdateProgress);
// tests can substitute an in-memory sink.
type Sink interface {
	Publish(ctx context.Context, snap Snapshot)
}

// Tracker accumulates one run's progress under atomic counters and
// coalesces publishes to at most one per minWriteInterval, plus a final
// publish at Finish — spec.md §4.9 step 3.
type Tracker struct {
	runID          string
	estimatedTotal int64 // 0 means unknown
	start          time.Time

	chunksCompleted atomic.Int64
	chunksFailed    atomic.Int64
	rowsProcessed   atomic.Int64
	rowsSucceeded   atomic.Int64
	rowsFailed      atomic.Int64

	sink          Sink
	minInterval   time.Duration
	mu            sync.Mutex
	lastPublished time.Time
}

func New(runID string, estimatedTotal int64, sink Sink, minWriteInterval time.Duration) *Tracker {
	return &Tracker{
		runID:          runID,
		estimatedTotal: estimatedTotal,
		start:          time.Now(),
		sink:           sink,
		minInterval:    minWriteInterval,
	}
}

// RecordChunk folds one ChunkResult's counters in and attempts a
// coalesced publish.
func (t *Tracker) RecordChunk(ctx context.Context, rowsRead, rowsSucceeded, rowsFailed int64, failed bool) {
	t.rowsProcessed.Add(rowsRead)
	t.rowsSucceeded.Add(rowsSucceeded)
	t.rowsFailed.Add(rowsFailed)
	if failed {
		t.chunksFailed.Add(1)
	} else {
		t.chunksCompleted.Add(1)
	}
	t.maybePublish(ctx, false)
}

// maybePublish publishes unconditionally when force is true (terminal
// publish); otherwise only if minInterval has elapsed since the last one.
func (t *Tracker) maybePublish(ctx context.Context, force bool) {
	t.mu.Lock()
	now := time.Now()
	if !force && now.Sub(t.lastPublished) < t.minInterval {
		t.mu.Unlock()
		return
	}
	t.lastPublished = now
	t.mu.Unlock()

	if t.sink != nil {
		t.sink.Publish(ctx, t.Snapshot())
	}
}

// Finish performs the mandatory final publish at run terminal.
func (t *Tracker) Finish(ctx context.Context) {
	t.maybePublish(ctx, true)
}

// Snapshot computes the current Snapshot per spec.md §4.9 step 2.
func (t *Tracker) Snapshot() Snapshot {
	processed := t.rowsProcessed.Load()
	elapsed := time.Since(t.start)

	snap := Snapshot{
		RunID:           t.runID,
		ChunksCompleted: t.chunksCompleted.Load(),
		ChunksFailed:    t.chunksFailed.Load(),
		RowsProcessed:   processed,
		RowsSucceeded:   t.rowsSucceeded.Load(),
		RowsFailed:      t.rowsFailed.Load(),
		Elapsed:         elapsed,
	}

	if t.estimatedTotal > 0 {
		p := float64(processed) / float64(t.estimatedTotal) * 100
		if p > 100 {
			p = 100
		}
		if p < 0 {
			p = 0
		}
		snap.Percentage = &p

		if p > 0 {
			eta := time.Duration(float64(elapsed) * (1 - p/100) / (p / 100))
			snap.ETA = &eta
		}
	}

	if elapsed > 0 {
		snap.ThroughputPerSec = float64(processed) / elapsed.Seconds()
	}

	return snap
}
