// Package metadata defines the Metadata Store Gateway: typed access to
// the request queue, run logs, row errors, mapping definitions, and
// schedule rows, independent of the backing SQL dialect (spec.md §4.1,
// §4.6, §6.1). internal/metadata/postgres provides the Postgres
// implementation; other engines implement the same interfaces.
package metadata

import (
	"context"
	"time"

	"github.com/etlcore/orchestrator/internal/domain"
)

// RequestGateway is the Job Request Queue's storage surface (spec.md §4.1).
type RequestGateway interface {
	// Enqueue inserts a new JobRequest in status NEW.
	Enqueue(ctx context.Context, mappingRef string, params domain.RequestParameters) (*domain.JobRequest, error)

	// Claim atomically selects up to limit NEW requests whose claim is
	// free, marks them CLAIMED by owner with the given lease deadline,
	// and returns them. Implemented with SELECT ... FOR UPDATE SKIP
	// LOCKED so concurrent dispatchers never double-claim a row.
	Claim(ctx context.Context, owner string, leaseDuration time.Duration, limit int) ([]*domain.JobRequest, error)

	// Heartbeat extends the claim deadline of a request still owned by
	// owner. Returns domain.ErrNotClaimed if owner no longer holds it.
	Heartbeat(ctx context.Context, requestID, owner string, leaseDuration time.Duration) error

	// Transition moves a request from one status to another, guarded by
	// the expected current status — a compare-and-swap. Returns
	// orcherr.ConcurrentTransitionError if the row's actual status
	// doesn't match expected.
	Transition(ctx context.Context, requestID string, expected, next domain.RequestStatus) error

	// MarkProcessing moves CLAIMED -> PROCESSING and stamps StartedAt.
	MarkProcessing(ctx context.Context, requestID, owner string) error

	// MarkTerminal moves the request to a terminal status and stamps
	// FinishedAt. Idempotent: a second call on an already-terminal
	// request is a no-op, not an error.
	MarkTerminal(ctx context.Context, requestID string, status domain.RequestStatus) error

	// ReclaimExpired resets CLAIMED/PROCESSING requests whose
	// ClaimDeadline has passed back to NEW, clearing ClaimOwner, so a
	// crashed worker's work becomes claimable again. Returns the count
	// reset.
	ReclaimExpired(ctx context.Context, now time.Time, limit int) (int, error)

	// Cancel marks a non-terminal request CANCELLED regardless of its
	// current non-terminal status. Returns domain.ErrRequestNotFound if
	// the request doesn't exist or is already terminal.
	Cancel(ctx context.Context, requestID string) error

	GetByID(ctx context.Context, requestID string) (*domain.JobRequest, error)

	// List returns requests ordered by CreatedAt descending, optionally
	// filtered by status, paginated with the cursor opaque token from a
	// prior List call (empty cursor starts from the top).
	List(ctx context.Context, status domain.RequestStatus, cursor string, limit int) ([]*domain.JobRequest, string, error)
}

// RunLogGateway is the run-history storage surface (spec.md §3, §4.9).
type RunLogGateway interface {
	StartRun(ctx context.Context, requestID, mappingRef string) (*domain.RunLog, error)

	// UpdateProgress persists the latest row counters for a run without
	// changing its status — the Progress Tracker's coalesced publish
	// target (spec.md §4.9).
	UpdateProgress(ctx context.Context, runID string, rowsRead, rowsSucceeded, rowsFailed int64) error

	// WriteCheckpoint persists the checkpoint value on run runID while
	// that row is still IN_PROGRESS — the write side of spec.md
	// §4.6's protocol, called by the executor coordinator after the
	// highest contiguous chunk prefix commits.
	WriteCheckpoint(ctx context.Context, runID, value string) error

	// Finish stamps EndedAt, final counters, status, and the checkpoint
	// value to resume from on the next run, for every terminal status
	// including CANCELLED.
	Finish(ctx context.Context, runID string, status domain.RunStatus, rowsRead, rowsSucceeded, rowsFailed int64, checkpointValue string, truncated bool) error

	// LastCheckpoint returns the checkpoint value governed by the most
	// recent run for mappingRef (by started_at): a SUCCESS row means
	// start from scratch ("") and any other terminal or IN_PROGRESS row
	// returns its last-written checkpoint. "" if no run exists.
	LastCheckpoint(ctx context.Context, mappingRef string) (string, error)

	InsertRowErrors(ctx context.Context, errs []domain.RowError) error

	GetByID(ctx context.Context, runID string) (*domain.RunLog, error)

	// GetLatestByRequestID returns the most recent RunLog row opened for
	// requestID (by started_at), for the worker-facing status() call's
	// last-run-id field (spec.md §6.2). domain.ErrRunLogNotFound if the
	// request never opened a run.
	GetLatestByRequestID(ctx context.Context, requestID string) (*domain.RunLog, error)
}

// MappingGateway resolves mapping definitions for the executor — the
// read side of the out-of-scope mapping-authoring surface (spec.md §1).
type MappingGateway interface {
	GetByRef(ctx context.Context, mappingRef string) (*domain.MappingDefinition, error)
}

// ScheduleGateway is the Schedule Evaluator's storage surface (spec.md §4.2).
type ScheduleGateway interface {
	// DueForTick selects up to limit ACTIVE schedules with NextRunAt <=
	// now, earliest first.
	DueForTick(ctx context.Context, now time.Time, limit int) ([]*domain.Schedule, error)

	// Advance records that a schedule fired at firedAt and sets its new
	// NextRunAt. It is a separate write from the request enqueue the
	// caller performs; the two do not share a transaction.
	Advance(ctx context.Context, scheduleID string, firedAt time.Time, nextRunAt time.Time) error

	GetByID(ctx context.Context, scheduleID string) (*domain.Schedule, error)
	List(ctx context.Context) ([]*domain.Schedule, error)
	Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	SetStatus(ctx context.Context, scheduleID string, status domain.ScheduleStatus) error
}

// Gateway bundles the four sub-gateways behind one constructed value,
// mirroring how the teacher wires one *pgxpool.Pool into several
// *Repository constructors from cmd/scheduler/main.go.
type Gateway struct {
	Requests  RequestGateway
	RunLogs   RunLogGateway
	Mappings  MappingGateway
	Schedules ScheduleGateway
}
