package executor

import (
	"context"
	"time"

	"github.com/etlcore/orchestrator/internal/dialect"
	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/executor/chunkproc"
	"github.com/etlcore/orchestrator/internal/metrics"
	"github.com/etlcore/orchestrator/internal/orcherr"
	"github.com/etlcore/orchestrator/internal/progress"
	"golang.org/x/sync/errgroup"
)

// runInput bundles everything one run's worker pool needs, so worker and
// coordinator goroutines don't carry a long, growing parameter list.
type runInput struct {
	run           *domain.RunLog
	requestID     string
	mapping       *domain.MappingDefinition
	compiled      *chunkproc.CompiledMapping
	plan          *domain.ChunkPlan
	loadMode      domain.LoadMode
	parallel      bool
	sourceDialect dialect.Dialect
	targetDialect dialect.Dialect
	tracker       *progress.Tracker
}

// chunkOutcome is one worker's ChunkResult plus its retry classification,
// submitted to the coordinator's results channel (spec.md §4.3 step 4).
type chunkOutcome struct {
	chunkIndex     int
	result         chunkproc.Result
	err            error
	classification orcherr.Classification
}

type poolOutcome struct {
	status         domain.RunStatus
	rowsRead       int64
	rowsSucceeded  int64
	rowsFailed     int64
	lastCheckpoint string
	truncated      bool
}

// runPool drives up to W concurrent chunk attempts over in.plan.Chunks,
// bounded by an errgroup limit, and a single coordinator draining their
// results in chunk-index order, per spec.md §4.3 steps 4-8.
func (e *Executor) runPool(ctx context.Context, in runInput) poolOutcome {
	workers := e.cfg.MaxWorkers
	if !in.parallel {
		workers = 1
	}
	if workers > len(in.plan.Chunks) {
		workers = len(in.plan.Chunks)
	}
	if workers < 1 {
		workers = 1
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	g, gCtx := errgroup.WithContext(runCtx)
	g.SetLimit(workers)

	resultCh := make(chan chunkOutcome, len(in.plan.Chunks))

	// g.Go blocks once the limit is reached, so chunks are handed out from
	// their own goroutine and the coordinator drains results meanwhile.
	go func() {
		for _, chunk := range in.plan.Chunks {
			chunk := chunk
			g.Go(func() error {
				e.runChunk(gCtx, in, chunk, resultCh)
				return nil
			})
		}
		_ = g.Wait()
		close(resultCh)
	}()

	return e.coordinate(ctx, cancelRun, in, resultCh)
}

// runChunk runs one chunk through the Retry Controller (which calls the
// Chunk Processor) and submits the outcome. Cancellation is observed
// between attempts by the Retry Controller, never mid-statement —
// spec.md §5 "Cancellation".
func (e *Executor) runChunk(ctx context.Context, in runInput, chunk domain.ChunkDescriptor, results chan<- chunkOutcome) {
	rc := e.retryController()

	start := time.Now()
	var res chunkproc.Result
	classification, attemptErr := rc.Run(ctx, func(attemptCtx context.Context, attemptNum int) error {
		if attemptNum > 0 {
			metrics.ChunkRetriesTotal.WithLabelValues(orcherr.ClassTransient.String()).Inc()
		}
		r, procErr := e.processor.Process(attemptCtx, in.run.RunID, in.compiled, chunk, in.loadMode, in.sourceDialect, in.targetDialect)
		res = r
		return procErr
	})

	outcome := "success"
	if attemptErr != nil {
		outcome = "failure"
	}
	metrics.ChunkDuration.WithLabelValues(string(chunk.Strategy), outcome).Observe(time.Since(start).Seconds())
	metrics.RowsProcessedTotal.WithLabelValues(in.mapping.MappingRef, outcome).Add(float64(res.RowsRead))
	in.tracker.RecordChunk(ctx, res.RowsRead, res.RowsSucceeded, res.RowsFailed, attemptErr != nil)

	select {
	case results <- chunkOutcome{chunkIndex: chunk.ChunkIndex, result: res, err: attemptErr, classification: classification}:
	case <-ctx.Done():
	}
}

// coordinate drains results in chunk-index order for checkpoint
// monotonicity (spec.md §4.3 step 5): it holds out-of-order results in
// pending and advances nextIndex only across a contiguous run of
// successes, writing the checkpoint after each advance. It also polls
// for the request's cancellation between drains (spec.md §5).
func (e *Executor) coordinate(ctx context.Context, cancelRun context.CancelFunc, in runInput, results <-chan chunkOutcome) poolOutcome {
	pending := make(map[int]chunkOutcome)
	nextIndex := 0
	total := len(in.plan.Chunks)

	var rowsRead, rowsSucceeded, rowsFailed int64
	var truncated, cancelledRun bool
	var lastCheckpoint string
	var permanentErr error
	var rowErrors []domain.RowError

	pollCancel := time.NewTicker(2 * time.Second)
	defer pollCancel.Stop()

drain:
	for nextIndex < total || len(pending) > 0 {
		select {
		case out, ok := <-results:
			if !ok {
				break drain
			}

			rowsRead += out.result.RowsRead
			rowsSucceeded += out.result.RowsSucceeded
			rowsFailed += out.result.RowsFailed
			if out.result.RowErrorsTruncated {
				truncated = true
			}
			rowErrors = append(rowErrors, out.result.RowErrors...)

			switch out.classification {
			case orcherr.ClassCancelled:
				cancelledRun = true
			case orcherr.ClassTransient, orcherr.ClassPermanentData, orcherr.ClassPermanentSystem:
				if permanentErr == nil {
					permanentErr = out.err
				}
			}

			pending[out.chunkIndex] = out
			for {
				next, ok := pending[nextIndex]
				if !ok {
					break
				}
				// A failed or cancelled chunk ends the contiguous prefix
				// here — advancing past it would let a later chunk that
				// committed out of order push the checkpoint beyond a gap
				// that was never written.
				if next.err != nil {
					break
				}
				if next.result.LastCheckpointObserved != "" {
					lastCheckpoint = next.result.LastCheckpointObserved
					if writeErr := e.checkpoint.WriteCheckpoint(ctx, in.run.RunID, lastCheckpoint); writeErr != nil {
						e.logger.Error("write checkpoint", "run_id", in.run.RunID, "error", writeErr)
					}
				}
				delete(pending, nextIndex)
				nextIndex++
			}

			if permanentErr != nil || cancelledRun {
				cancelRun()
			}

		case <-pollCancel.C:
			if e.cancelled(ctx, in.requestID) {
				cancelledRun = true
				cancelRun()
			}
		}
	}

	if len(rowErrors) > 0 {
		if err := e.gateway.RunLogs.InsertRowErrors(ctx, rowErrors); err != nil {
			e.logger.Error("insert row errors", "run_id", in.run.RunID, "error", err)
		}
	}

	status := domain.RunSuccess
	switch {
	case cancelledRun:
		status = domain.RunCancelled
	case permanentErr != nil:
		status = domain.RunFailed
	case nextIndex < total:
		status = domain.RunFailed
	}

	return poolOutcome{
		status:         status,
		rowsRead:       rowsRead,
		rowsSucceeded:  rowsSucceeded,
		rowsFailed:     rowsFailed,
		lastCheckpoint: lastCheckpoint,
		truncated:      truncated,
	}
}
