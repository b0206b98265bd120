package chunkproc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/orcherr"
)

// coerce converts v to col's semantic type per spec.md §4.7 step 4's
// type-coercion table, returning a *orcherr.PermanentDataError with code
// TYPE_COERCION on any violation rather than failing the chunk.
func coerce(v any, col domain.ColumnMapping) (any, error) {
	switch col.TargetType {
	case domain.TypeInteger:
		return coerceInteger(v)
	case domain.TypeDecimal:
		return coerceDecimal(v)
	case domain.TypeTextBounded:
		return coerceTextBounded(v, col.TargetLength)
	case domain.TypeTimestamp:
		return coerceTimestamp(v)
	case domain.TypeBoolean:
		return coerceBoolean(v)
	case domain.TypeBinary:
		return v, nil
	default:
		return nil, orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, fmt.Sprintf("unknown target type %q", col.TargetType))
	}
}

func coerceInteger(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		if x != float64(int64(x)) {
			return nil, orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, "decimal value has a fractional part, cannot coerce to integer")
		}
		return int64(x), nil
	default:
		return nil, orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, fmt.Sprintf("cannot coerce %T to integer", v))
	}
}

func coerceDecimal(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	default:
		return nil, orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, fmt.Sprintf("cannot coerce %T to decimal", v))
	}
}

func coerceTextBounded(v any, maxLen int) (any, error) {
	s, ok := toStringAny(v)
	if !ok {
		return nil, orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, fmt.Sprintf("cannot coerce %T to text", v))
	}
	if maxLen > 0 && len(s) > maxLen {
		return nil, orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, fmt.Sprintf("text value exceeds max length %d", maxLen))
	}
	return s, nil
}

func coerceTimestamp(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		t, err := time.Parse(time.RFC3339, x)
		if err != nil {
			return nil, orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, fmt.Sprintf("cannot parse %q as ISO-8601 timestamp", x))
		}
		return t, nil
	default:
		return nil, orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, fmt.Sprintf("cannot coerce %T to timestamp", v))
	}
}

func coerceBoolean(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		if x == 0 {
			return false, nil
		}
		if x == 1 {
			return true, nil
		}
	case float64:
		if x == 0 {
			return false, nil
		}
		if x == 1 {
			return true, nil
		}
	case string:
		switch strings.ToUpper(x) {
		case "Y":
			return true, nil
		case "N":
			return false, nil
		}
	}
	return nil, orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, fmt.Sprintf("cannot coerce %v to boolean", v))
}

func toStringAny(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	case time.Time:
		return x.Format(time.RFC3339), true
	case nil:
		return "", true
	default:
		return "", false
	}
}
