// Package dispatcher implements the poll loop that claims NEW requests
// from internal/queue and hands each to internal/executor, generalized
// from the teacher's scheduler.Worker (poll ticker, per-job heartbeat
// goroutine, bounded claim batch).
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/executor"
	"github.com/etlcore/orchestrator/internal/queue"
	"golang.org/x/sync/errgroup"
)

// Dispatcher polls the queue for claimable requests and runs each to
// completion through the executor, bounded by Concurrency concurrent
// requests — separate from the executor's own per-run chunk worker pool.
type Dispatcher struct {
	id            string
	q             *queue.Queue
	ex            *executor.Executor
	logger        *slog.Logger
	pollInterval  time.Duration
	leaseDuration time.Duration
	concurrency   int
}

func New(q *queue.Queue, ex *executor.Executor, logger *slog.Logger, pollInterval, leaseDuration time.Duration, concurrency int) *Dispatcher {
	hostname, _ := os.Hostname()
	id := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	return &Dispatcher{
		id:            id,
		q:             q,
		ex:            ex,
		logger:        logger.With("component", "dispatcher", "dispatcher_id", id),
		pollInterval:  pollInterval,
		leaseDuration: leaseDuration,
		concurrency:   concurrency,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started", "concurrency", d.concurrency, "poll_interval", d.pollInterval)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher shut down")
			return
		case <-ticker.C:
			d.processBatch(ctx)
		}
	}
}

func (d *Dispatcher) processBatch(ctx context.Context) {
	requests, err := d.q.Claim(ctx, d.id, d.leaseDuration, d.concurrency)
	if err != nil {
		d.logger.Error("claim batch", "error", err)
		return
	}
	if len(requests) == 0 {
		return
	}
	d.logger.Info("claimed requests", "count", len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, req := range requests {
		req := req
		g.Go(func() error {
			d.runOne(gctx, req)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) runOne(ctx context.Context, req *domain.JobRequest) {
	if err := d.q.BeginProcessing(ctx, req.ID, d.id); err != nil {
		d.logger.Error("begin processing", "request_id", req.ID, "error", err)
		return
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go d.heartbeat(heartbeatCtx, req.ID)

	if _, err := d.ex.RunRequest(ctx, req); err != nil {
		d.logger.Error("run request", "request_id", req.ID, "mapping_ref", req.MappingRef, "error", err)
	}
}

func (d *Dispatcher) heartbeat(ctx context.Context, requestID string) {
	interval := d.leaseDuration / 3
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.q.Heartbeat(ctx, requestID, d.id, d.leaseDuration); err != nil {
				d.logger.Warn("heartbeat failed", "request_id", requestID, "error", err)
			}
		}
	}
}
