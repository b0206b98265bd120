package schedule

import (
	"time"

	"github.com/etlcore/orchestrator/internal/domain"
)

// timeParam is the parsed recurrence time-parameter string per spec.md
// §6.3: "HH:MM" (DAILY), "DOW_HH:MM" (WEEKLY/FORTNIGHTLY) or "D_HH:MM"
// (MONTHLY/HALF_YEARLY/YEARLY).
type timeParam struct {
	hour, minute int
	weekday      time.Weekday // WEEKLY/FORTNIGHTLY
	dayOfMonth   int          // MONTHLY/HALF_YEARLY/YEARLY
}

// advance computes the schedule's next next-run-at deterministically
// from its frequency and time parameter, given the current next-run-at
// (spec.md §4.2). This is hand-rolled rather than delegated to a cron
// expression parser: the frequency-code grammar (DAILY/WEEKLY/
// FORTNIGHTLY/MONTHLY/HALF_YEARLY/YEARLY/IMMEDIATE plus day-of-month
// end-of-month clamping) isn't expressible as a single cron field set,
// and IMMEDIATE has no cron analogue at all.
func advance(freq domain.Frequency, tp timeParam, from time.Time) time.Time {
	switch freq {
	case domain.FreqDaily:
		next := atTimeOfDay(from.AddDate(0, 0, 1), tp)
		return next

	case domain.FreqWeekly:
		return nextWeekday(from, tp)

	case domain.FreqFortnightly:
		return nextWeekday(from, tp).AddDate(0, 0, 7)

	case domain.FreqMonthly:
		return nextMonthDay(from, tp, 1)

	case domain.FreqHalfYearly:
		return nextMonthDay(from, tp, 6)

	case domain.FreqYearly:
		return nextMonthDay(from, tp, 12)

	case domain.FreqImmediate:
		// One-shot: caller transitions status to ENDED after firing, so
		// the value returned here is never consulted again.
		return from

	default:
		return from
	}
}

func atTimeOfDay(t time.Time, tp timeParam) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), tp.hour, tp.minute, 0, 0, t.Location())
}

// nextWeekday finds the next occurrence of tp.weekday at tp.hour:tp.minute
// strictly after `from`.
func nextWeekday(from time.Time, tp timeParam) time.Time {
	candidate := atTimeOfDay(from, tp)
	for {
		candidate = candidate.AddDate(0, 0, 1)
		if candidate.Weekday() == tp.weekday && candidate.After(from) {
			return candidate
		}
	}
}

// nextMonthDay advances `from` by monthStep months, landing on
// tp.dayOfMonth at tp.hour:tp.minute, clamped to the target month's last
// day when the month is too short (e.g. day 31 in a 30-day month).
func nextMonthDay(from time.Time, tp timeParam, monthStep int) time.Time {
	year, month := from.Year(), from.Month()
	targetMonth := time.Month(int(month) + monthStep)
	for targetMonth > 12 {
		targetMonth -= 12
		year++
	}

	lastDay := daysInMonth(year, targetMonth)
	day := tp.dayOfMonth
	if day > lastDay {
		day = lastDay
	}

	return time.Date(year, targetMonth, day, tp.hour, tp.minute, 0, 0, from.Location())
}

func daysInMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	lastOfThis := firstOfNext.AddDate(0, 0, -1)
	return lastOfThis.Day()
}
