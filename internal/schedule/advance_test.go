package schedule

import (
	"testing"
	"time"

	"github.com/etlcore/orchestrator/internal/domain"
)

func mustTime(t *testing.T, layout, value string) time.Time {
	t.Helper()
	tm, err := time.Parse(layout, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return tm
}

func TestAdvanceDaily(t *testing.T) {
	from := mustTime(t, "2006-01-02 15:04", "2026-07-30 09:00")
	tp := timeParam{hour: 9, minute: 0}
	next := advance(domain.FreqDaily, tp, from)
	want := mustTime(t, "2006-01-02 15:04", "2026-07-31 09:00")
	if !next.Equal(want) {
		t.Errorf("advance(DAILY) = %v, want %v", next, want)
	}
}

func TestAdvanceWeekly(t *testing.T) {
	// 2026-07-30 is a Thursday.
	from := mustTime(t, "2006-01-02 15:04", "2026-07-30 09:00")
	tp := timeParam{hour: 9, minute: 0, weekday: time.Monday}
	next := advance(domain.FreqWeekly, tp, from)
	if next.Weekday() != time.Monday {
		t.Errorf("next weekday = %v, want Monday", next.Weekday())
	}
	if !next.After(from) {
		t.Errorf("next %v must be after from %v", next, from)
	}
}

func TestAdvanceFortnightlyAddsTwoWeeks(t *testing.T) {
	from := mustTime(t, "2006-01-02 15:04", "2026-07-30 09:00")
	tp := timeParam{hour: 9, minute: 0, weekday: time.Monday}
	weekly := advance(domain.FreqWeekly, tp, from)
	fortnightly := advance(domain.FreqFortnightly, tp, from)
	if fortnightly.Sub(weekly) != 7*24*time.Hour {
		t.Errorf("fortnightly - weekly = %v, want 7 days", fortnightly.Sub(weekly))
	}
}

func TestAdvanceMonthlyClampsEndOfMonth(t *testing.T) {
	// day 31 in February must clamp to the 28th (2026 is not a leap year).
	from := mustTime(t, "2006-01-02 15:04", "2026-01-31 09:00")
	tp := timeParam{hour: 9, minute: 0, dayOfMonth: 31}
	next := advance(domain.FreqMonthly, tp, from)
	if next.Month() != time.February || next.Day() != 28 {
		t.Errorf("next = %v, want Feb 28", next)
	}
}

func TestAdvanceYearlySameDayNextYear(t *testing.T) {
	from := mustTime(t, "2006-01-02 15:04", "2026-03-15 12:00")
	tp := timeParam{hour: 12, minute: 0, dayOfMonth: 15}
	next := advance(domain.FreqYearly, tp, from)
	if next.Year() != 2027 || next.Month() != time.March || next.Day() != 15 {
		t.Errorf("next = %v, want 2027-03-15", next)
	}
}

func TestAdvanceImmediateReturnsSameInstant(t *testing.T) {
	from := mustTime(t, "2006-01-02 15:04", "2026-07-30 09:00")
	next := advance(domain.FreqImmediate, timeParam{}, from)
	if !next.Equal(from) {
		t.Errorf("advance(IMMEDIATE) = %v, want %v", next, from)
	}
}

func TestParseTimeParamDaily(t *testing.T) {
	tp, err := parseTimeParam(domain.FreqDaily, "09:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.hour != 9 || tp.minute != 30 {
		t.Errorf("tp = %+v, want hour=9 minute=30", tp)
	}
}

func TestParseTimeParamWeekly(t *testing.T) {
	tp, err := parseTimeParam(domain.FreqWeekly, "MON_09:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.weekday != time.Monday || tp.hour != 9 {
		t.Errorf("tp = %+v, want weekday=Monday hour=9", tp)
	}
}

func TestParseTimeParamMonthlyInvalidDay(t *testing.T) {
	if _, err := parseTimeParam(domain.FreqMonthly, "32_09:00"); err == nil {
		t.Error("expected error for out-of-range day")
	}
}

func TestParseTimeParamMalformed(t *testing.T) {
	if _, err := parseTimeParam(domain.FreqDaily, "not-a-time"); err == nil {
		t.Error("expected error for malformed HH:MM")
	}
}

func TestNextRunAtLandsOnOrAfterStartDate(t *testing.T) {
	start := mustTime(t, "2006-01-02 15:04", "2026-07-30 00:00")
	next, err := NextRunAt(domain.FreqDaily, "09:00", start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Before(start) {
		t.Errorf("next %v before start %v", next, start)
	}
}

func TestNextRunAtImmediateIsStartDate(t *testing.T) {
	start := mustTime(t, "2006-01-02 15:04", "2026-07-30 00:00")
	next, err := NextRunAt(domain.FreqImmediate, "", start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(start) {
		t.Errorf("next = %v, want %v", next, start)
	}
}
