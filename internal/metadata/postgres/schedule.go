package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/etlcore/orchestrator/internal/dialect"
	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type scheduleGateway struct {
	pool   *pgxpool.Pool
	schema string
	d      dialect.Dialect
}

func (g *scheduleGateway) tbl() string { return table(g.schema, g.d, "schedules") }

// DueForTick selects due schedules with FOR UPDATE SKIP LOCKED, matching
// the teacher's ClaimAndFire claim step but without the job-insert — the
// caller (internal/schedule) enqueues and then calls Advance as separate
// writes. The SELECT runs on the pool outside a transaction, so its row
// locks end with the statement.
func (g *scheduleGateway) DueForTick(ctx context.Context, now time.Time, limit int) ([]*domain.Schedule, error) {
	query := `
		SELECT schedule_id, mapping_ref, frequency, time_parameter, start_date,
		       end_date, next_run_at, last_run_at, status
		FROM ` + g.tbl() + `
		WHERE status = $1 AND next_run_at <= $2
		ORDER BY next_run_at ASC
		LIMIT $3
		` + g.d.SkipLockedClause()

	rows, err := g.pool.Query(ctx, query, domain.ScheduleActive, now, limit)
	if err != nil {
		return nil, wrapErr("due for tick", err)
	}
	defer rows.Close()

	var out []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (g *scheduleGateway) Advance(ctx context.Context, scheduleID string, firedAt, nextRunAt time.Time) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE `+g.tbl()+`
		SET    last_run_at = $2, next_run_at = $3
		WHERE schedule_id = $1`, scheduleID, firedAt, nextRunAt)
	if err != nil {
		return wrapErr("advance schedule", err)
	}
	return nil
}

func (g *scheduleGateway) GetByID(ctx context.Context, scheduleID string) (*domain.Schedule, error) {
	row := g.pool.QueryRow(ctx, `
		SELECT schedule_id, mapping_ref, frequency, time_parameter, start_date,
		       end_date, next_run_at, last_run_at, status
		FROM `+g.tbl()+`
		WHERE schedule_id = $1`, scheduleID)
	return scanSchedule(row)
}

func (g *scheduleGateway) List(ctx context.Context) ([]*domain.Schedule, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT schedule_id, mapping_ref, frequency, time_parameter, start_date,
		       end_date, next_run_at, last_run_at, status
		FROM `+g.tbl()+`
		ORDER BY next_run_at ASC`)
	if err != nil {
		return nil, wrapErr("list schedules", err)
	}
	defer rows.Close()

	var out []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (g *scheduleGateway) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	query := `
		INSERT INTO ` + g.tbl() + ` (schedule_id, mapping_ref, frequency, time_parameter,
		       start_date, end_date, next_run_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING schedule_id, mapping_ref, frequency, time_parameter, start_date,
		          end_date, next_run_at, last_run_at, status`

	id := s.ScheduleID
	if id == "" {
		id = uuid.NewString()
	}
	row := g.pool.QueryRow(ctx, query,
		id, s.MappingRef, s.Frequency, s.TimeParam, s.StartDate, s.EndDate, s.NextRunAt, s.Status)
	return scanSchedule(row)
}

func (g *scheduleGateway) SetStatus(ctx context.Context, scheduleID string, status domain.ScheduleStatus) error {
	tag, err := g.pool.Exec(ctx, `
		UPDATE `+g.tbl()+` SET status = $2 WHERE schedule_id = $1`, scheduleID, status)
	if err != nil {
		return wrapErr("set schedule status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	var s domain.Schedule
	err := row.Scan(
		&s.ScheduleID, &s.MappingRef, &s.Frequency, &s.TimeParam, &s.StartDate,
		&s.EndDate, &s.NextRunAt, &s.LastRunAt, &s.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, wrapErr("scan schedule", err)
	}
	return &s, nil
}
