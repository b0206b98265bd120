package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/etlcore/orchestrator/internal/dialect"
	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/orcherr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type requestGateway struct {
	pool   *pgxpool.Pool
	schema string
	d      dialect.Dialect
}

func (g *requestGateway) tbl() string { return table(g.schema, g.d, "job_requests") }

func (g *requestGateway) Enqueue(ctx context.Context, mappingRef string, params domain.RequestParameters) (*domain.JobRequest, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, wrapErr("enqueue: marshal parameters", err)
	}

	query := `
		INSERT INTO ` + g.tbl() + ` (id, mapping_ref, status, parameters, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, mapping_ref, status, claim_owner, claim_deadline,
		          created_at, started_at, finished_at, parameters`

	row := g.pool.QueryRow(ctx, query, uuid.NewString(), mappingRef, domain.StatusNew, paramsJSON)
	return scanRequest(row)
}

func (g *requestGateway) Claim(ctx context.Context, owner string, leaseDuration time.Duration, limit int) ([]*domain.JobRequest, error) {
	query := `
		UPDATE ` + g.tbl() + `
		SET    status         = '` + string(domain.StatusClaimed) + `',
		       claim_owner    = $1,
		       claim_deadline = NOW() + $2::interval,
		       updated_at     = NOW()
		WHERE id IN (
			SELECT id FROM ` + g.tbl() + `
			WHERE  status = '` + string(domain.StatusNew) + `'
			ORDER BY created_at ASC
			LIMIT $3
			` + g.d.SkipLockedClause() + `
		)
		RETURNING id, mapping_ref, status, claim_owner, claim_deadline,
		          created_at, started_at, finished_at, parameters`

	rows, err := g.pool.Query(ctx, query, owner, leaseDuration.String(), limit)
	if err != nil {
		return nil, wrapErr("claim", err)
	}
	defer rows.Close()

	var out []*domain.JobRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (g *requestGateway) Heartbeat(ctx context.Context, requestID, owner string, leaseDuration time.Duration) error {
	tag, err := g.pool.Exec(ctx, `
		UPDATE `+g.tbl()+`
		SET    claim_deadline = NOW() + $3::interval, updated_at = NOW()
		WHERE id = $1 AND claim_owner = $2 AND status IN ('`+string(domain.StatusClaimed)+`', '`+string(domain.StatusProcessing)+`')`,
		requestID, owner, leaseDuration.String())
	if err != nil {
		return wrapErr("heartbeat", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotClaimed
	}
	return nil
}

func (g *requestGateway) Transition(ctx context.Context, requestID string, expected, next domain.RequestStatus) error {
	tag, err := g.pool.Exec(ctx, `
		UPDATE `+g.tbl()+`
		SET    status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		requestID, expected, next)
	if err != nil {
		return wrapErr("transition", err)
	}
	if tag.RowsAffected() == 0 {
		return &orcherr.ConcurrentTransitionError{RequestID: requestID, FromStatus: string(expected), ToStatus: string(next)}
	}
	return nil
}

func (g *requestGateway) MarkProcessing(ctx context.Context, requestID, owner string) error {
	tag, err := g.pool.Exec(ctx, `
		UPDATE `+g.tbl()+`
		SET    status = '`+string(domain.StatusProcessing)+`', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND claim_owner = $2 AND status = '`+string(domain.StatusClaimed)+`'`,
		requestID, owner)
	if err != nil {
		return wrapErr("mark processing", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotClaimed
	}
	return nil
}

func (g *requestGateway) MarkTerminal(ctx context.Context, requestID string, status domain.RequestStatus) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE `+g.tbl()+`
		SET    status = $2, finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('`+string(domain.StatusDone)+`', '`+string(domain.StatusFailed)+`', '`+string(domain.StatusCancelled)+`')`,
		requestID, status)
	if err != nil {
		return wrapErr("mark terminal", err)
	}
	return nil
}

func (g *requestGateway) ReclaimExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	tag, err := g.pool.Exec(ctx, `
		UPDATE `+g.tbl()+`
		SET    status = '`+string(domain.StatusNew)+`', claim_owner = NULL, claim_deadline = NULL, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM `+g.tbl()+`
			WHERE  status IN ('`+string(domain.StatusClaimed)+`', '`+string(domain.StatusProcessing)+`')
			  AND  claim_deadline < $1
			LIMIT $2
			`+g.d.SkipLockedClause()+`
		)`, now, limit)
	if err != nil {
		return 0, wrapErr("reclaim expired", err)
	}
	return int(tag.RowsAffected()), nil
}

func (g *requestGateway) Cancel(ctx context.Context, requestID string) error {
	tag, err := g.pool.Exec(ctx, `
		UPDATE `+g.tbl()+`
		SET    status = '`+string(domain.StatusCancelled)+`', finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('`+string(domain.StatusDone)+`', '`+string(domain.StatusFailed)+`', '`+string(domain.StatusCancelled)+`')`,
		requestID)
	if err != nil {
		return wrapErr("cancel", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

func (g *requestGateway) GetByID(ctx context.Context, requestID string) (*domain.JobRequest, error) {
	row := g.pool.QueryRow(ctx, `
		SELECT id, mapping_ref, status, claim_owner, claim_deadline,
		       created_at, started_at, finished_at, parameters
		FROM `+g.tbl()+`
		WHERE id = $1`, requestID)
	return scanRequest(row)
}

func (g *requestGateway) List(ctx context.Context, status domain.RequestStatus, cursor string, limit int) ([]*domain.JobRequest, string, error) {
	c, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", wrapErr("list: decode cursor", err)
	}

	args := []any{}
	where := []string{"TRUE"}
	if status != "" {
		args = append(args, status)
		where = append(where, "status = $"+itoa(len(args)))
	}
	if c != nil {
		args = append(args, c.CreatedAt, c.ID)
		where = append(where, "(created_at, id) < ($"+itoa(len(args)-1)+", $"+itoa(len(args))+")")
	}
	args = append(args, limit)

	query := `
		SELECT id, mapping_ref, status, claim_owner, claim_deadline,
		       created_at, started_at, finished_at, parameters
		FROM ` + g.tbl() + `
		WHERE ` + joinAnd(where) + `
		ORDER BY created_at DESC, id DESC
		LIMIT $` + itoa(len(args))

	rows, err := g.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", wrapErr("list", err)
	}
	defer rows.Close()

	var out []*domain.JobRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", wrapErr("list: iterate", err)
	}

	next := ""
	if len(out) == limit {
		last := out[len(out)-1]
		next = encodeCursor(cursorToken{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return out, next, nil
}

func scanRequest(row rowScanner) (*domain.JobRequest, error) {
	var r domain.JobRequest
	var paramsJSON []byte
	err := row.Scan(
		&r.ID, &r.MappingRef, &r.Status, &r.ClaimOwner, &r.ClaimDeadline,
		&r.CreatedAt, &r.StartedAt, &r.FinishedAt, &paramsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, wrapErr("scan request", err)
	}
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &r.Parameters); err != nil {
			return nil, wrapErr("scan request: unmarshal parameters", err)
		}
	}
	return &r, nil
}
