package domain

import (
	"errors"
	"time"
)

var ErrRunLogNotFound = errors.New("run log not found")

// CompletedCheckpoint is the literal checkpoint-value written on a
// SUCCESS run, meaning "do not resume" (spec.md §3, §4.6).
const CompletedCheckpoint = "COMPLETED"

type RunStatus string

const (
	RunInProgress RunStatus = "IN_PROGRESS"
	RunSuccess    RunStatus = "SUCCESS"
	RunFailed     RunStatus = "FAILED"
	RunCancelled  RunStatus = "CANCELLED"
)

func (s RunStatus) IsTerminal() bool {
	return s == RunSuccess || s == RunFailed || s == RunCancelled
}

// RunLog is one execution attempt of a JobRequest (spec.md §3).
type RunLog struct {
	RunID               string     `json:"run_id"`
	RequestID           string     `json:"request_id"`
	MappingRef          string     `json:"mapping_ref"`
	Status              RunStatus  `json:"status"`
	RowsRead            int64      `json:"rows_read"`
	RowsSucceeded       int64      `json:"rows_succeeded"`
	RowsFailed          int64      `json:"rows_failed"`
	StartedAt           time.Time  `json:"started_at"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
	CheckpointValue     string     `json:"checkpoint_value,omitempty"`
	RowErrorsTruncated  bool       `json:"row_errors_truncated"`
}

// RowError is a per-failed-row diagnostic record, spec.md §3. Retained up
// to the configured row_error_cap; overflow is counted (RunLog.RowsFailed
// still increments) but not stored and sets RowErrorsTruncated.
type RowError struct {
	ErrID             string `json:"err_id"`
	RunID             string `json:"run_id"`
	RowOrdinal        int64  `json:"row_ordinal"`
	ErrorCode         string `json:"error_code"`
	ErrorMessage      string `json:"error_message"`
	RowDataSerialized string `json:"row_data_serialized"`
}
