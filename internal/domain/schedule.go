package domain

import (
	"errors"
	"time"
)

var (
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrInvalidTimeParam  = errors.New("invalid schedule time parameter")
)

// Frequency is the recurrence code driving Schedule.advance (spec.md §4.2).
type Frequency string

const (
	FreqDaily        Frequency = "DAILY"
	FreqWeekly       Frequency = "WEEKLY"
	FreqFortnightly  Frequency = "FORTNIGHTLY"
	FreqMonthly      Frequency = "MONTHLY"
	FreqHalfYearly   Frequency = "HALF_YEARLY"
	FreqYearly       Frequency = "YEARLY"
	FreqImmediate    Frequency = "IMMEDIATE"
)

type ScheduleStatus string

const (
	ScheduleActive ScheduleStatus = "ACTIVE"
	SchedulePaused ScheduleStatus = "PAUSED"
	ScheduleEnded  ScheduleStatus = "ENDED"
)

// Schedule is a recurrence spec.md §3/§4.2/§6.3 describes: a frequency
// code plus a time-parameter string, advanced deterministically on each
// tick by the Schedule Evaluator.
type Schedule struct {
	ScheduleID   string         `json:"schedule_id"`
	MappingRef   string         `json:"mapping_ref"`
	Frequency    Frequency      `json:"frequency"`
	TimeParam    string         `json:"time_parameter"`
	StartDate    time.Time      `json:"start_date"`
	EndDate      *time.Time     `json:"end_date,omitempty"`
	NextRunAt    time.Time      `json:"next_run_at"`
	LastRunAt    *time.Time     `json:"last_run_at,omitempty"`
	Status       ScheduleStatus `json:"status"`
}

// Due reports whether now is at or past NextRunAt and within EndDate,
// per the invariant in spec.md §3.
func (s Schedule) Due(now time.Time) bool {
	if s.Status != ScheduleActive {
		return false
	}
	if now.Before(s.NextRunAt) {
		return false
	}
	if s.EndDate != nil && s.NextRunAt.After(*s.EndDate) {
		return false
	}
	return true
}
