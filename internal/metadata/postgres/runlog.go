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

type runLogGateway struct {
	pool   *pgxpool.Pool
	schema string
	d      dialect.Dialect
}

func (g *runLogGateway) tbl() string    { return table(g.schema, g.d, "run_logs") }
func (g *runLogGateway) errTbl() string { return table(g.schema, g.d, "row_errors") }

func (g *runLogGateway) StartRun(ctx context.Context, requestID, mappingRef string) (*domain.RunLog, error) {
	query := `
		INSERT INTO ` + g.tbl() + ` (run_id, request_id, mapping_ref, status, started_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING run_id, request_id, mapping_ref, status, rows_read, rows_succeeded,
		          rows_failed, started_at, ended_at, checkpoint_value, row_errors_truncated`

	row := g.pool.QueryRow(ctx, query, uuid.NewString(), requestID, mappingRef, domain.RunInProgress)
	return scanRunLog(row)
}

func (g *runLogGateway) UpdateProgress(ctx context.Context, runID string, rowsRead, rowsSucceeded, rowsFailed int64) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE `+g.tbl()+`
		SET    rows_read = $2, rows_succeeded = $3, rows_failed = $4
		WHERE run_id = $1`,
		runID, rowsRead, rowsSucceeded, rowsFailed)
	if err != nil {
		return wrapErr("update progress", err)
	}
	return nil
}

func (g *runLogGateway) WriteCheckpoint(ctx context.Context, runID, value string) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE `+g.tbl()+`
		SET    checkpoint_value = $2
		WHERE run_id = $1 AND status = $3`,
		runID, value, domain.RunInProgress)
	if err != nil {
		return wrapErr("write checkpoint", err)
	}
	return nil
}

func (g *runLogGateway) Finish(ctx context.Context, runID string, status domain.RunStatus, rowsRead, rowsSucceeded, rowsFailed int64, checkpointValue string, truncated bool) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE `+g.tbl()+`
		SET    status = $2, ended_at = NOW(), rows_read = $3, rows_succeeded = $4,
		       rows_failed = $5, checkpoint_value = $6, row_errors_truncated = $7
		WHERE run_id = $1`,
		runID, status, rowsRead, rowsSucceeded, rowsFailed, checkpointValue, truncated)
	if err != nil {
		return wrapErr("finish run", err)
	}
	return nil
}

// LastCheckpoint implements spec.md §4.6's read-checkpoint: the most
// recent RunLog row for mappingRef, by started_at, governs. A SUCCESS
// row's checkpoint_value is the literal "COMPLETED" and is translated
// here to "" (start from scratch); IN_PROGRESS, FAILED, and CANCELLED
// rows return whatever checkpoint was last written, letting a restart
// resume past the last contiguously-committed chunk. No prior row also
// means "" (start from scratch).
func (g *runLogGateway) LastCheckpoint(ctx context.Context, mappingRef string) (string, error) {
	var status domain.RunStatus
	var value *string
	err := g.pool.QueryRow(ctx, `
		SELECT status, checkpoint_value
		FROM `+g.tbl()+`
		WHERE mapping_ref = $1
		ORDER BY started_at DESC
		LIMIT 1`, mappingRef).Scan(&status, &value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", wrapErr("last checkpoint", err)
	}
	if status == domain.RunSuccess {
		return "", nil
	}
	if value == nil {
		return "", nil
	}
	return *value, nil
}

func (g *runLogGateway) InsertRowErrors(ctx context.Context, errs []domain.RowError) error {
	if len(errs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range errs {
		batch.Queue(`
			INSERT INTO `+g.errTbl()+` (err_id, run_id, row_ordinal, error_code, error_message, row_data_serialized)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), e.RunID, e.RowOrdinal, e.ErrorCode, e.ErrorMessage, e.RowDataSerialized)
	}
	br := g.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range errs {
		if _, err := br.Exec(); err != nil {
			return wrapErr("insert row errors", err)
		}
	}
	return nil
}

func (g *runLogGateway) GetByID(ctx context.Context, runID string) (*domain.RunLog, error) {
	row := g.pool.QueryRow(ctx, `
		SELECT run_id, request_id, mapping_ref, status, rows_read, rows_succeeded,
		       rows_failed, started_at, ended_at, checkpoint_value, row_errors_truncated
		FROM `+g.tbl()+`
		WHERE run_id = $1`, runID)
	return scanRunLog(row)
}

func (g *runLogGateway) GetLatestByRequestID(ctx context.Context, requestID string) (*domain.RunLog, error) {
	row := g.pool.QueryRow(ctx, `
		SELECT run_id, request_id, mapping_ref, status, rows_read, rows_succeeded,
		       rows_failed, started_at, ended_at, checkpoint_value, row_errors_truncated
		FROM `+g.tbl()+`
		WHERE request_id = $1
		ORDER BY started_at DESC
		LIMIT 1`, requestID)
	return scanRunLog(row)
}

func scanRunLog(row rowScanner) (*domain.RunLog, error) {
	var r domain.RunLog
	var checkpoint *string
	var endedAt *time.Time
	err := row.Scan(
		&r.RunID, &r.RequestID, &r.MappingRef, &r.Status, &r.RowsRead, &r.RowsSucceeded,
		&r.RowsFailed, &r.StartedAt, &endedAt, &checkpoint, &r.RowErrorsTruncated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunLogNotFound
		}
		return nil, wrapErr("scan run log", err)
	}
	r.EndedAt = endedAt
	if checkpoint != nil {
		r.CheckpointValue = *checkpoint
	}
	return &r, nil
}
