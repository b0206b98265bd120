package derive

import (
	"fmt"
	"strings"
)

type fn func(args []any) (any, error)

// functions is the fixed function set spec.md §4.7 allows: coalesce,
// concat, substring, trim, upper, lower, cast (handled separately in the
// parser as a special form), date-diff, if-then-else (also a special
// form). No function here touches the filesystem, network, or
// reflection.
var functions = map[string]fn{
	"COALESCE":  fnCoalesce,
	"CONCAT":    fnConcat,
	"SUBSTRING": fnSubstring,
	"TRIM":      fnTrim,
	"UPPER":     fnUpper,
	"LOWER":     fnLower,
	"DATE_DIFF": fnDateDiff,
}

func fnCoalesce(args []any) (any, error) {
	for _, a := range args {
		if a != nil {
			if s, ok := a.(string); ok && s == "" {
				continue
			}
			return a, nil
		}
	}
	return nil, nil
}

func fnConcat(args []any) (any, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(toString(a))
	}
	return b.String(), nil
}

func fnSubstring(args []any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("derive: SUBSTRING expects 3 arguments, got %d", len(args))
	}
	s := toString(args[0])
	start, err := toFloat(args[1])
	if err != nil {
		return nil, err
	}
	length, err := toFloat(args[2])
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	i := int(start) - 1 // 1-based, SQL-style
	if i < 0 {
		i = 0
	}
	if i > len(runes) {
		i = len(runes)
	}
	end := i + int(length)
	if end > len(runes) {
		end = len(runes)
	}
	if end < i {
		end = i
	}
	return string(runes[i:end]), nil
}

func fnTrim(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("derive: TRIM expects 1 argument, got %d", len(args))
	}
	return strings.TrimSpace(toString(args[0])), nil
}

func fnUpper(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("derive: UPPER expects 1 argument, got %d", len(args))
	}
	return strings.ToUpper(toString(args[0])), nil
}

func fnLower(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("derive: LOWER expects 1 argument, got %d", len(args))
	}
	return strings.ToLower(toString(args[0])), nil
}

// fnDateDiff computes end-start in the given unit: DATE_DIFF('day', start, end).
func fnDateDiff(args []any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("derive: DATE_DIFF expects 3 arguments, got %d", len(args))
	}
	unit := strings.ToLower(toString(args[0]))
	start, err := toTime(args[1])
	if err != nil {
		return nil, err
	}
	end, err := toTime(args[2])
	if err != nil {
		return nil, err
	}
	d := end.Sub(start)
	switch unit {
	case "second", "seconds":
		return d.Seconds(), nil
	case "minute", "minutes":
		return d.Minutes(), nil
	case "hour", "hours":
		return d.Hours(), nil
	case "day", "days":
		return d.Hours() / 24, nil
	default:
		return nil, fmt.Errorf("derive: unknown DATE_DIFF unit %q", unit)
	}
}
