package plan

import "strconv"

// parseNumericBounds parses the checkpoint low/high bounds as floats so
// the planner can divide the span into evenly sized steps. KEY columns
// that aren't numeric (e.g. timestamps rendered as RFC3339 strings)
// don't parse here, and the planner falls back to ORDINAL; KEY ranges
// are only stepped over numeric bounds.
func parseNumericBounds(low, high string) (lowF, highF float64, ok bool) {
	if low == "" {
		low = "0"
	}
	l, err := strconv.ParseFloat(low, 64)
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.ParseFloat(high, 64)
	if err != nil {
		return 0, 0, false
	}
	return l, h, true
}

func formatNumericBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
