package domain

import (
	"errors"
	"time"
)

var (
	ErrRequestNotFound = errors.New("request not found")
	ErrNotClaimed      = errors.New("request is not currently claimed by this owner")
)

// RequestStatus is the JobRequest lifecycle state, spec.md §3.
type RequestStatus string

const (
	StatusNew        RequestStatus = "NEW"
	StatusClaimed    RequestStatus = "CLAIMED"
	StatusProcessing RequestStatus = "PROCESSING"
	StatusDone       RequestStatus = "DONE"
	StatusFailed     RequestStatus = "FAILED"
	StatusCancelled  RequestStatus = "CANCELLED"
)

// IsTerminal reports whether status has no outgoing transitions other
// than none — DONE, FAILED, and CANCELLED are immutable per spec.md §3.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// LoadMode is the target-write policy carried in JobRequest.Parameters.
type LoadMode string

const (
	LoadModeInsert       LoadMode = "INSERT"
	LoadModeTruncateLoad LoadMode = "TRUNCATE_LOAD"
	LoadModeUpsert       LoadMode = "UPSERT"
)

// RequestParameters is the opaque key/value payload of a JobRequest,
// carrying at minimum the load-mode and, for schedule-originated
// requests, the triggering schedule-id.
type RequestParameters struct {
	LoadMode   LoadMode `json:"load_mode,omitempty"`
	Source     string   `json:"source,omitempty"` // e.g. "SCHEDULE" or "MANUAL"
	ScheduleID string   `json:"schedule_id,omitempty"`
}

// JobRequest is one unit of queued work: "run mapping-reference with
// these parameters". Exactly one worker holds it while status is
// CLAIMED or PROCESSING (enforced by the claim's row-level lock).
type JobRequest struct {
	ID            string            `json:"id"`
	MappingRef    string            `json:"mapping_ref"`
	Status        RequestStatus     `json:"status"`
	ClaimOwner    *string           `json:"claim_owner,omitempty"`
	ClaimDeadline *time.Time        `json:"claim_deadline,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	FinishedAt    *time.Time        `json:"finished_at,omitempty"`
	Parameters    RequestParameters `json:"parameters"`
}
