// Package queue implements the Job Request Queue & Dispatcher (spec.md
// §4.1): enqueue, lease-based claim, heartbeat, guarded transition,
// expired-lease reclaim, and cancel, layered over a metadata.RequestGateway.
package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/metadata"
	"github.com/etlcore/orchestrator/internal/metrics"
)

// Queue is the in-process facade the dispatcher, the HTTP admin surface,
// and the executor all share — mirroring the teacher's usecase layer
// sitting in front of its repository.
type Queue struct {
	requests metadata.RequestGateway
	logger   *slog.Logger
}

func New(requests metadata.RequestGateway, logger *slog.Logger) *Queue {
	return &Queue{requests: requests, logger: logger.With("component", "queue")}
}

// Enqueue creates a new JobRequest in status NEW.
func (q *Queue) Enqueue(ctx context.Context, mappingRef string, params domain.RequestParameters) (*domain.JobRequest, error) {
	return q.requests.Enqueue(ctx, mappingRef, params)
}

// Claim leases up to limit NEW requests to owner for leaseDuration,
// recording the queue_claim_latency_seconds histogram from CreatedAt to
// now for each claimed request (spec.md §7's claim-latency property).
func (q *Queue) Claim(ctx context.Context, owner string, leaseDuration time.Duration, limit int) ([]*domain.JobRequest, error) {
	claimed, err := q.requests.Claim(ctx, owner, leaseDuration, limit)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, r := range claimed {
		metrics.QueueClaimLatency.Observe(now.Sub(r.CreatedAt).Seconds())
		metrics.QueueTransitionsTotal.WithLabelValues(string(domain.StatusClaimed), "ok").Inc()
	}
	return claimed, nil
}

// Heartbeat extends a claimed/processing request's lease.
func (q *Queue) Heartbeat(ctx context.Context, requestID, owner string, leaseDuration time.Duration) error {
	return q.requests.Heartbeat(ctx, requestID, owner, leaseDuration)
}

// BeginProcessing moves a request CLAIMED -> PROCESSING. The dispatcher
// calls it before handing the request to the executor, which then
// resolves the mapping.
func (q *Queue) BeginProcessing(ctx context.Context, requestID, owner string) error {
	err := q.requests.MarkProcessing(ctx, requestID, owner)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.QueueTransitionsTotal.WithLabelValues(string(domain.StatusProcessing), outcome).Inc()
	return err
}

// Finish moves a request to a terminal status (DONE or FAILED).
func (q *Queue) Finish(ctx context.Context, requestID string, status domain.RequestStatus) error {
	err := q.requests.MarkTerminal(ctx, requestID, status)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.QueueTransitionsTotal.WithLabelValues(string(status), outcome).Inc()
	return err
}

// Cancel marks a non-terminal request CANCELLED. The executor observes
// this asynchronously via its cancellation-token poll (spec.md §4.3).
func (q *Queue) Cancel(ctx context.Context, requestID string) error {
	err := q.requests.Cancel(ctx, requestID)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.QueueTransitionsTotal.WithLabelValues(string(domain.StatusCancelled), outcome).Inc()
	return err
}

func (q *Queue) GetByID(ctx context.Context, requestID string) (*domain.JobRequest, error) {
	return q.requests.GetByID(ctx, requestID)
}

func (q *Queue) List(ctx context.Context, status domain.RequestStatus, cursor string, limit int) ([]*domain.JobRequest, string, error) {
	return q.requests.List(ctx, status, cursor, limit)
}

// ReclaimExpired resets leases whose deadline has passed back to NEW.
// Returns the number reclaimed.
func (q *Queue) ReclaimExpired(ctx context.Context, limit int) (int, error) {
	n, err := q.requests.ReclaimExpired(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.ReclaimedTotal.WithLabelValues("lease_expired").Add(float64(n))
	}
	return n, nil
}
