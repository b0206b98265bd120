package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/etlcore/orchestrator/internal/domain"
)

var weekdayNames = map[string]time.Weekday{
	"SUN": time.Sunday, "MON": time.Monday, "TUE": time.Tuesday,
	"WED": time.Wednesday, "THU": time.Thursday, "FRI": time.Friday, "SAT": time.Saturday,
}

// parseTimeParam parses the schedule time-parameter string per spec.md
// §6.3, validating it against the frequency it's paired with.
func parseTimeParam(freq domain.Frequency, raw string) (timeParam, error) {
	switch freq {
	case domain.FreqDaily, domain.FreqImmediate:
		h, m, err := parseHHMM(raw)
		if err != nil {
			return timeParam{}, err
		}
		return timeParam{hour: h, minute: m}, nil

	case domain.FreqWeekly, domain.FreqFortnightly:
		parts := strings.SplitN(raw, "_", 2)
		if len(parts) != 2 {
			return timeParam{}, fmt.Errorf("%w: expected DOW_HH:MM, got %q", domain.ErrInvalidTimeParam, raw)
		}
		wd, ok := weekdayNames[strings.ToUpper(parts[0])]
		if !ok {
			return timeParam{}, fmt.Errorf("%w: unknown weekday %q", domain.ErrInvalidTimeParam, parts[0])
		}
		h, m, err := parseHHMM(parts[1])
		if err != nil {
			return timeParam{}, err
		}
		return timeParam{hour: h, minute: m, weekday: wd}, nil

	case domain.FreqMonthly, domain.FreqHalfYearly, domain.FreqYearly:
		parts := strings.SplitN(raw, "_", 2)
		if len(parts) != 2 {
			return timeParam{}, fmt.Errorf("%w: expected D_HH:MM, got %q", domain.ErrInvalidTimeParam, raw)
		}
		day, err := strconv.Atoi(parts[0])
		if err != nil || day < 1 || day > 31 {
			return timeParam{}, fmt.Errorf("%w: day-of-month %q out of range", domain.ErrInvalidTimeParam, parts[0])
		}
		h, m, err := parseHHMM(parts[1])
		if err != nil {
			return timeParam{}, err
		}
		return timeParam{hour: h, minute: m, dayOfMonth: day}, nil

	default:
		return timeParam{}, fmt.Errorf("%w: unknown frequency %q", domain.ErrInvalidTimeParam, freq)
	}
}

func parseHHMM(raw string) (int, int, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: expected HH:MM, got %q", domain.ErrInvalidTimeParam, raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%w: hour %q out of range", domain.ErrInvalidTimeParam, parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: minute %q out of range", domain.ErrInvalidTimeParam, parts[1])
	}
	return h, m, nil
}
