// Package schedule implements the Schedule Evaluator (spec.md §4.2): a
// tick loop that advances recurrence schedules and enqueues requests when
// they come due, generalized from the teacher's scheduler.Dispatcher.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/metadata"
	"github.com/etlcore/orchestrator/internal/metrics"
	"github.com/etlcore/orchestrator/internal/queue"
)

// Evaluator is the tick loop. Unlike the teacher's Dispatcher (which
// claims-and-fires entirely inside the repository), advance() here is
// computed in Go and only the resulting next-run-at/status are persisted,
// since the frequency grammar isn't a cron expression the database layer
// could evaluate on its own.
type Evaluator struct {
	schedules metadata.ScheduleGateway
	q         *queue.Queue
	logger    *slog.Logger
	interval  time.Duration
	limit     int
}

func NewEvaluator(schedules metadata.ScheduleGateway, q *queue.Queue, logger *slog.Logger, interval time.Duration) *Evaluator {
	return &Evaluator{
		schedules: schedules,
		q:         q,
		logger:    logger.With("component", "schedule_evaluator"),
		interval:  interval,
		limit:     100,
	}
}

func (e *Evaluator) Start(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("schedule evaluator started", "interval", e.interval)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("schedule evaluator shut down")
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Evaluator) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.ScheduleTickDuration.Observe(time.Since(start).Seconds())
	}()

	now := time.Now()
	due, err := e.schedules.DueForTick(ctx, now, e.limit)
	if err != nil {
		e.logger.Error("schedule evaluator: due-for-tick", "error", err)
		return
	}

	for _, s := range due {
		if err := e.fire(ctx, s, now); err != nil {
			e.logger.Error("schedule evaluator: fire", "schedule_id", s.ScheduleID, "error", err)
		}
	}
}

// fire implements spec.md §4.2's four-step tick body for one schedule:
// enqueue, stamp last-run-at, advance next-run-at, and end the schedule
// if it's past its end-date or one-shot.
func (e *Evaluator) fire(ctx context.Context, s *domain.Schedule, now time.Time) error {
	_, err := e.q.Enqueue(ctx, s.MappingRef, domain.RequestParameters{
		Source:     "SCHEDULE",
		ScheduleID: s.ScheduleID,
	})
	if err != nil {
		return err
	}
	metrics.ScheduleEnqueuedTotal.Inc()

	firedAt := s.NextRunAt

	if s.Frequency == domain.FreqImmediate {
		if err := e.schedules.SetStatus(ctx, s.ScheduleID, domain.ScheduleEnded); err != nil {
			return err
		}
		return e.schedules.Advance(ctx, s.ScheduleID, firedAt, firedAt)
	}

	tp, err := parseTimeParam(s.Frequency, s.TimeParam)
	if err != nil {
		return err
	}
	next := advance(s.Frequency, tp, firedAt)

	if s.EndDate != nil && next.After(*s.EndDate) {
		if err := e.schedules.SetStatus(ctx, s.ScheduleID, domain.ScheduleEnded); err != nil {
			return err
		}
	}

	return e.schedules.Advance(ctx, s.ScheduleID, firedAt, next)
}

// NextRunAt computes the initial next-run-at for a newly created
// schedule, anchored at startDate, so Create doesn't need a caller-
// supplied first occurrence.
func NextRunAt(freq domain.Frequency, rawTimeParam string, startDate time.Time) (time.Time, error) {
	if freq == domain.FreqImmediate {
		return startDate, nil
	}
	tp, err := parseTimeParam(freq, rawTimeParam)
	if err != nil {
		return time.Time{}, err
	}
	// Seed one tick before startDate so advance() lands on or after it.
	seed := startDate.AddDate(0, 0, -1)
	next := advance(freq, tp, seed)
	if next.Before(startDate) {
		next = advance(freq, tp, next)
	}
	return next, nil
}
