package chunkproc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/etlcore/orchestrator/internal/connpool"
	"github.com/etlcore/orchestrator/internal/derive"
	"github.com/etlcore/orchestrator/internal/dialect"
	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/orcherr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Processor executes one chunk end-to-end per spec.md §4.7's 7-step
// algorithm, borrowing connections from a connpool.Manager.
type Processor struct {
	pool        *connpool.Manager
	acquireWait time.Duration
	rowErrorCap int
}

func New(pool *connpool.Manager, acquireWait time.Duration, rowErrorCap int) *Processor {
	if rowErrorCap <= 0 {
		rowErrorCap = 1000
	}
	return &Processor{pool: pool, acquireWait: acquireWait, rowErrorCap: rowErrorCap}
}

// Process runs one chunk attempt. runID is the owning RunLog's id, used
// to stamp RowError rows. loadMode is the effective load mode for this
// run (the request's override or the mapping's default); TRUNCATE_LOAD
// is the caller's responsibility to apply once before chunk 0 — this
// method treats it identically to INSERT.
func (p *Processor) Process(ctx context.Context, runID string, cm *CompiledMapping, chunk domain.ChunkDescriptor, loadMode domain.LoadMode, sourceDialect, targetDialect dialect.Dialect) (Result, error) {
	m := cm.Def

	srcConn, err := p.pool.Acquire(ctx, m.SourceConnectionRef, p.acquireWait)
	if err != nil {
		return Result{}, orcherr.NewTransientIOError("acquire source connection", err)
	}
	defer p.pool.Release(srcConn)

	tgtConn, err := p.pool.Acquire(ctx, m.TargetConnectionRef, p.acquireWait)
	if err != nil {
		return Result{}, orcherr.NewTransientIOError("acquire target connection", err)
	}
	defer p.pool.Release(tgtConn)

	query, err := buildSourceQuery(sourceDialect, m, chunk)
	if err != nil {
		return Result{}, orcherr.NewPermanentSystemError("build source query", err)
	}

	rows, err := srcConn.Conn().Query(ctx, query)
	if err != nil {
		return Result{}, classifyPgError("source query", err)
	}
	defer rows.Close()

	cols := m.EffectiveColumns()
	insertStmt := buildInsert(targetDialect, m, cols, loadMode)

	tx, err := tgtConn.Conn().Begin(ctx)
	if err != nil {
		return Result{}, orcherr.NewTransientIOError("begin target transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	result := Result{ChunkIndex: chunk.ChunkIndex}
	fields := rows.FieldDescriptions()

	for rows.Next() {
		select {
		case <-ctx.Done():
			return result, orcherr.ErrCancelled
		default:
		}

		values, err := rows.Values()
		if err != nil {
			return result, orcherr.NewTransientIOError("read source row", err)
		}
		result.RowsRead++

		srcRow := make(derive.Row, len(values))
		for i, f := range fields {
			srcRow[string(f.Name)] = values[i]
		}

		targetValues, rowErr := buildTargetRow(cm, cols, srcRow)
		if rowErr == nil {
			rowErr = p.loadRow(ctx, tx, insertStmt, targetValues)
		}

		if rowErr != nil {
			var sysErr *orcherr.PermanentSystemError
			if errors.As(rowErr, &sysErr) {
				// A structural failure (missing table/column, bad SQL,
				// insufficient privilege) isn't a row-data problem — it
				// will recur for every row, so fail the chunk now
				// instead of recording RowsFailed rows one at a time.
				return result, rowErr
			}
			result.RowsFailed++
			p.recordRowError(&result, runID, result.RowsRead, rowErr, srcRow)
			continue
		}

		result.RowsSucceeded++
		if m.CheckpointColumn != nil {
			if v, ok := srcRow[*m.CheckpointColumn]; ok {
				result.LastCheckpointObserved = fmt.Sprintf("%v", v)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return result, classifyPgError("iterate source rows", err)
	}

	if chunk.Strategy == domain.ChunkStrategyOrdinal {
		result.LastCheckpointObserved = ordinalCheckpoint(chunk, result.RowsRead)
	}

	if err := tx.Commit(ctx); err != nil {
		return result, orcherr.NewTransientIOError("commit chunk", err)
	}
	committed = true

	return result, nil
}

// buildTargetRow applies column mappings (direct copy or derivation) and
// type coercion, returning ordered target values or the first per-row
// failure encountered — spec.md §4.7 steps 3-4.
func buildTargetRow(cm *CompiledMapping, cols []domain.ColumnMapping, srcRow derive.Row) ([]any, error) {
	out := make([]any, len(cols))
	for i, col := range cols {
		var raw any
		switch {
		case col.DerivationExpression != nil && *col.DerivationExpression != "":
			expr := cm.Derivations[col.TargetColumn]
			v, err := expr.Eval(srcRow)
			if err != nil {
				return nil, orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, err.Error())
			}
			raw = v
		case col.SourceColumn != nil:
			raw = srcRow[*col.SourceColumn]
		default:
			raw = nil
		}

		if raw == nil && col.RequiredFlag {
			return nil, orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, fmt.Sprintf("required column %q is null", col.TargetColumn))
		}
		if raw == nil {
			out[i] = nil
			continue
		}

		coerced, err := coerce(raw, col)
		if err != nil {
			return nil, err
		}
		out[i] = coerced
	}
	return out, nil
}

// loadRow inserts one row inside a savepoint so a per-row failure (e.g.
// a unique-constraint violation) doesn't abort the whole chunk
// transaction — only that row rolls back.
func (p *Processor) loadRow(ctx context.Context, tx pgx.Tx, insertStmt string, values []any) error {
	if _, err := tx.Exec(ctx, "SAVEPOINT row_sp"); err != nil {
		return orcherr.NewTransientIOError("savepoint", err)
	}

	_, err := tx.Exec(ctx, insertStmt, values...)
	if err != nil {
		if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT row_sp"); rbErr != nil {
			return orcherr.NewTransientIOError("rollback to savepoint", rbErr)
		}
		return classifyLoadError(err)
	}

	_, err = tx.Exec(ctx, "RELEASE SAVEPOINT row_sp")
	return err
}

func (p *Processor) recordRowError(result *Result, runID string, ordinal int64, rowErr error, srcRow derive.Row) {
	if len(result.RowErrors) >= p.rowErrorCap {
		result.RowErrorsTruncated = true
		return
	}

	code := orcherr.CodeTypeCoercion
	var permData *orcherr.PermanentDataError
	if errors.As(rowErr, &permData) {
		code = permData.Code
	}

	serialized, _ := json.Marshal(srcRow)
	result.RowErrors = append(result.RowErrors, domain.RowError{
		ErrID:             uuid.NewString(),
		RunID:             runID,
		RowOrdinal:        ordinal,
		ErrorCode:         code,
		ErrorMessage:      rowErr.Error(),
		RowDataSerialized: string(serialized),
	})
}

// ordinalCheckpoint is the cumulative offset reached once this chunk
// commits: the chunk's declared upper bound, or — for the open-ended
// final chunk a planner emits when row-count estimation was unavailable
// — the lower bound plus however many rows this attempt actually read.
func ordinalCheckpoint(chunk domain.ChunkDescriptor, rowsRead int64) string {
	if chunk.UpperBound != "" {
		return chunk.UpperBound
	}
	lower, _ := strconv.ParseInt(chunk.LowerBound, 10, 64)
	return strconv.FormatInt(lower+rowsRead, 10)
}

// classifyLoadError sorts a failed row insert by pgconn.PgError class.
// Integrity-constraint violations (class 23) are per-row data problems
// the spec expects the chunk to absorb and keep going; structural
// failures — undefined table/column (42P01/42703), syntax errors
// (42601), insufficient privilege (42501), and the broader syntax/access
// (42), insufficient-resources (53), operator-intervention (57), and
// feature-not-supported (0A) classes — recur for every row in the chunk,
// so they're surfaced chunk-level instead of as one RowError per row.
func classifyLoadError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "42", "53", "57", "0A":
			return orcherr.NewPermanentSystemError("load row", err)
		}
		if pgErr.Code == "23505" {
			return orcherr.NewPermanentDataError(orcherr.CodeDuplicateKey, pgErr.Message)
		}
	}
	return orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, err.Error())
}

func classifyPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code[:2] {
		case "40", "08": // serialization/deadlock/connection exception classes
			return orcherr.NewTransientIOError(op, err)
		}
		return orcherr.NewPermanentSystemError(op, err)
	}
	return orcherr.NewTransientIOError(op, err)
}
