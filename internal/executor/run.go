package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/etlcore/orchestrator/internal/checkpoint"
	"github.com/etlcore/orchestrator/internal/dialect"
	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/executor/chunkproc"
	"github.com/etlcore/orchestrator/internal/metrics"
	"github.com/etlcore/orchestrator/internal/progress"
)

// RunSummary is the spec.md §4.3 entry point's return value.
type RunSummary struct {
	RunLog *domain.RunLog
	Plan   *domain.ChunkPlan
}

// RunRequest executes one claimed JobRequest end to end: resolves the
// mapping, opens a RunLog, builds the ChunkPlan, drives the worker pool,
// and closes the RunLog with the outcome. The caller (the dispatcher
// loop) is responsible for having already moved the request to
// PROCESSING via Queue.BeginProcessing.
func (e *Executor) RunRequest(ctx context.Context, req *domain.JobRequest) (RunSummary, error) {
	mapping, err := e.gateway.Mappings.GetByRef(ctx, req.MappingRef)
	if err != nil {
		_ = e.queue.Finish(ctx, req.ID, domain.StatusFailed)
		return RunSummary{}, fmt.Errorf("executor: resolve mapping %q: %w", req.MappingRef, err)
	}

	compiled, err := chunkproc.Compile(mapping)
	if err != nil {
		_ = e.queue.Finish(ctx, req.ID, domain.StatusFailed)
		return RunSummary{}, fmt.Errorf("executor: compile mapping %q: %w", req.MappingRef, err)
	}

	strategy := checkpoint.EffectiveStrategy(mapping)
	lastCheckpoint, err := e.checkpoint.ReadCheckpoint(ctx, strategy, mapping.MappingRef)
	if err != nil {
		_ = e.queue.Finish(ctx, req.ID, domain.StatusFailed)
		return RunSummary{}, fmt.Errorf("executor: read checkpoint: %w", err)
	}

	run, err := e.gateway.RunLogs.StartRun(ctx, req.ID, mapping.MappingRef)
	if err != nil {
		_ = e.queue.Finish(ctx, req.ID, domain.StatusFailed)
		return RunSummary{}, fmt.Errorf("executor: open run log: %w", err)
	}
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	loadMode := req.Parameters.LoadMode
	if loadMode == "" {
		loadMode = mapping.LoadModeDefault
	}

	startedAt := time.Now()
	chunkPlan, parallel, err := e.buildPlan(ctx, mapping, strategy, lastCheckpoint)
	if err != nil {
		e.finishRun(ctx, run.RunID, domain.RunFailed, 0, 0, 0, lastCheckpoint, false, startedAt)
		_ = e.queue.Finish(ctx, req.ID, domain.StatusFailed)
		return RunSummary{}, fmt.Errorf("executor: build chunk plan: %w", err)
	}

	if loadMode == domain.LoadModeTruncateLoad {
		if err := e.truncateTarget(ctx, mapping); err != nil {
			e.finishRun(ctx, run.RunID, domain.RunFailed, 0, 0, 0, lastCheckpoint, false, startedAt)
			_ = e.queue.Finish(ctx, req.ID, domain.StatusFailed)
			return RunSummary{}, fmt.Errorf("executor: truncate target: %w", err)
		}
	}

	sourceDialect, err := e.dialectFor(mapping.SourceConnectionRef)
	if err != nil {
		e.finishRun(ctx, run.RunID, domain.RunFailed, 0, 0, 0, lastCheckpoint, false, startedAt)
		_ = e.queue.Finish(ctx, req.ID, domain.StatusFailed)
		return RunSummary{}, err
	}
	targetDialect, err := e.dialectFor(mapping.TargetConnectionRef)
	if err != nil {
		e.finishRun(ctx, run.RunID, domain.RunFailed, 0, 0, 0, lastCheckpoint, false, startedAt)
		_ = e.queue.Finish(ctx, req.ID, domain.StatusFailed)
		return RunSummary{}, err
	}

	estimatedTotal := int64(len(chunkPlan.Chunks)) * int64(mapping.BatchSize)
	tracker := progress.New(run.RunID, estimatedTotal, e.progressSink(), e.cfg.ProgressMinInterval)
	e.trackRun(req.ID, tracker)
	defer e.untrackRun(req.ID)

	outcome := e.runPool(ctx, runInput{
		run:           run,
		requestID:     req.ID,
		mapping:       mapping,
		compiled:      compiled,
		plan:          chunkPlan,
		loadMode:      loadMode,
		parallel:      parallel,
		sourceDialect: sourceDialect,
		targetDialect: targetDialect,
		tracker:       tracker,
	})
	tracker.Finish(ctx)

	e.finishRun(ctx, run.RunID, outcome.status, outcome.rowsRead, outcome.rowsSucceeded, outcome.rowsFailed, outcome.lastCheckpoint, outcome.truncated, startedAt)

	finalRequestStatus := domain.StatusDone
	if outcome.status != domain.RunSuccess {
		finalRequestStatus = domain.StatusFailed
	}
	if err := e.queue.Finish(ctx, req.ID, finalRequestStatus); err != nil {
		e.logger.Error("finish request", "request_id", req.ID, "error", err)
	}

	run.Status = outcome.status
	run.RowsRead = outcome.rowsRead
	run.RowsSucceeded = outcome.rowsSucceeded
	run.RowsFailed = outcome.rowsFailed
	return RunSummary{RunLog: run, Plan: chunkPlan}, nil
}

func (e *Executor) buildPlan(ctx context.Context, mapping *domain.MappingDefinition, strategy domain.CheckpointStrategy, lastCheckpoint string) (*domain.ChunkPlan, bool, error) {
	parallel := e.decideParallel(ctx, mapping, strategy)
	chunkPlan, err := e.planner.Build(ctx, mapping, strategy, lastCheckpoint, parallel)
	if err != nil {
		return nil, false, err
	}
	return chunkPlan, parallel, nil
}

// decideParallel implements spec.md §4.3 step 2: parallelize only when
// the source is large enough and the strategy supports partitioning
// (KEY or ORDINAL, never NONE).
func (e *Executor) decideParallel(ctx context.Context, mapping *domain.MappingDefinition, strategy domain.CheckpointStrategy) bool {
	if strategy != domain.CheckpointKey && strategy != domain.CheckpointOrdinal {
		return false
	}
	count, ok, err := e.stats.EstimateRowCount(ctx, mapping)
	if err != nil || !ok {
		return false
	}
	return count >= e.cfg.MinRowsForParallel
}

func (e *Executor) truncateTarget(ctx context.Context, mapping *domain.MappingDefinition) error {
	d, err := e.dialectFor(mapping.TargetConnectionRef)
	if err != nil {
		return err
	}
	table := dialect.QualifyTable(d, mapping.TargetSchema, mapping.TargetTable)

	conn, err := e.pool.Acquire(ctx, mapping.TargetConnectionRef, e.cfg.ConnectAcquireWait)
	if err != nil {
		return err
	}
	defer e.pool.Release(conn)

	_, err = conn.Conn().Exec(ctx, d.TruncateStatement(table))
	return err
}

func (e *Executor) finishRun(ctx context.Context, runID string, status domain.RunStatus, rowsRead, rowsSucceeded, rowsFailed int64, checkpointValue string, truncated bool, startedAt time.Time) {
	value := checkpointValue
	if status == domain.RunSuccess {
		value = domain.CompletedCheckpoint
	}
	if err := e.gateway.RunLogs.Finish(ctx, runID, status, rowsRead, rowsSucceeded, rowsFailed, value, truncated); err != nil {
		e.logger.Error("finish run log", "run_id", runID, "error", err)
	}
	outcome := "success"
	if status != domain.RunSuccess {
		outcome = "failure"
	}
	metrics.RunDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
}
