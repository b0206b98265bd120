package queue

import (
	"context"
	"time"
)

// Reclaimer periodically sweeps for requests whose lease has expired and
// returns them to NEW, generalized from the teacher's reaper.go
// RescheduleStale/FailStale ticker loop — the distributed-queue crash
// recovery mechanism spec.md §4.1 requires.
type Reclaimer struct {
	q        *Queue
	interval time.Duration
	limit    int
}

func NewReclaimer(q *Queue, interval time.Duration) *Reclaimer {
	return &Reclaimer{q: q, interval: interval, limit: 100}
}

func (r *Reclaimer) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.q.logger.Info("reclaimer started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.q.logger.Info("reclaimer shut down")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reclaimer) sweep(ctx context.Context) {
	n, err := r.q.ReclaimExpired(ctx, r.limit)
	if err != nil {
		r.q.logger.Error("reclaim sweep failed", "error", err)
		return
	}
	if n > 0 {
		r.q.logger.Info("reclaimed expired leases", "count", n)
	}
}
