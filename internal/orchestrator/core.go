// Package orchestrator exposes the worker-facing API (spec.md §6.2) as a
// single in-process facade: enqueue, cancel, status, and
// register-progress-sink. internal/transport/http wraps this same facade
// over HTTP; cmd/orchestratorctl calls it directly.
package orchestrator

import (
	"context"
	"errors"

	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/executor"
	"github.com/etlcore/orchestrator/internal/metadata"
	"github.com/etlcore/orchestrator/internal/progress"
	"github.com/etlcore/orchestrator/internal/queue"
)

// Status is the worker-facing status() call's result (spec.md §6.2):
// {status, progress-snapshot?, last-run-id?}.
type Status struct {
	Request          *domain.JobRequest
	ProgressSnapshot *progress.Snapshot
	LastRunID        string
}

// Core bundles the queue and executor behind the three synchronous calls
// and the one registration call spec.md §6.2 names.
type Core struct {
	queue    *queue.Queue
	executor *executor.Executor
	runLogs  metadata.RunLogGateway
}

func New(q *queue.Queue, ex *executor.Executor, runLogs metadata.RunLogGateway) *Core {
	return &Core{queue: q, executor: ex, runLogs: runLogs}
}

// Enqueue creates a new JobRequest in status NEW and returns its id.
func (c *Core) Enqueue(ctx context.Context, mappingRef string, params domain.RequestParameters) (string, error) {
	req, err := c.queue.Enqueue(ctx, mappingRef, params)
	if err != nil {
		return "", err
	}
	return req.ID, nil
}

// Cancel marks requestID CANCELLED; the executor observes this
// asynchronously between chunk results (spec.md §5).
func (c *Core) Cancel(ctx context.Context, requestID string) error {
	return c.queue.Cancel(ctx, requestID)
}

// Status resolves the current JobRequest plus, when a run is currently
// executing for it, a live progress.Snapshot, plus the most recent
// RunLog's id if one has ever been opened.
func (c *Core) Status(ctx context.Context, requestID string) (Status, error) {
	req, err := c.queue.GetByID(ctx, requestID)
	if err != nil {
		return Status{}, err
	}

	st := Status{Request: req}
	if snap, ok := c.executor.Snapshot(requestID); ok {
		st.ProgressSnapshot = &snap
	}

	run, err := c.runLogs.GetLatestByRequestID(ctx, requestID)
	switch {
	case err == nil:
		st.LastRunID = run.RunID
	case errors.Is(err, domain.ErrRunLogNotFound):
		// No run has opened for this request yet — fine, leave LastRunID empty.
	default:
		return Status{}, err
	}

	return st, nil
}

// RegisterProgressSink adds sink as an additional destination for every
// run's progress.Snapshot publishes (spec.md §6.2).
func (c *Core) RegisterProgressSink(sink progress.Sink) {
	c.executor.RegisterProgressSink(sink)
}

// List proxies to the queue's paginated listing, for the HTTP admin
// surface and orchestratorctl.
func (c *Core) List(ctx context.Context, status domain.RequestStatus, cursor string, limit int) ([]*domain.JobRequest, string, error) {
	return c.queue.List(ctx, status, cursor, limit)
}
