package chunkproc

import (
	"errors"
	"testing"
	"time"

	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/orcherr"
)

func col(t domain.SemanticType, targetLength int) domain.ColumnMapping {
	return domain.ColumnMapping{TargetType: t, TargetLength: targetLength}
}

func wantPermanentData(t *testing.T, err error) {
	t.Helper()
	var pde *orcherr.PermanentDataError
	if !errors.As(err, &pde) {
		t.Fatalf("err = %v, want *orcherr.PermanentDataError", err)
	}
	if pde.Code != orcherr.CodeTypeCoercion {
		t.Errorf("code = %v, want CodeTypeCoercion", pde.Code)
	}
}

func TestCoerceIntegerFromFloatWholeNumber(t *testing.T) {
	v, err := coerce(float64(42), col(domain.TypeInteger, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(int64) != 42 {
		t.Errorf("v = %v, want 42", v)
	}
}

func TestCoerceIntegerFromFractionalFloatFails(t *testing.T) {
	_, err := coerce(float64(42.5), col(domain.TypeInteger, 0))
	wantPermanentData(t, err)
}

func TestCoerceIntegerFromIncompatibleTypeFails(t *testing.T) {
	_, err := coerce("not a number", col(domain.TypeInteger, 0))
	wantPermanentData(t, err)
}

func TestCoerceDecimalFromInt(t *testing.T) {
	v, err := coerce(int64(7), col(domain.TypeDecimal, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(float64) != 7.0 {
		t.Errorf("v = %v, want 7.0", v)
	}
}

func TestCoerceTextBoundedWithinLimit(t *testing.T) {
	v, err := coerce("hello", col(domain.TypeTextBounded, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(string) != "hello" {
		t.Errorf("v = %v, want hello", v)
	}
}

func TestCoerceTextBoundedExceedsLimitFails(t *testing.T) {
	_, err := coerce("this string is far too long", col(domain.TypeTextBounded, 5))
	wantPermanentData(t, err)
}

func TestCoerceTimestampFromRFC3339String(t *testing.T) {
	v, err := coerce("2026-07-30T09:00:00Z", col(domain.TypeTimestamp, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	if !v.(time.Time).Equal(want) {
		t.Errorf("v = %v, want %v", v, want)
	}
}

func TestCoerceTimestampMalformedStringFails(t *testing.T) {
	_, err := coerce("not-a-date", col(domain.TypeTimestamp, 0))
	wantPermanentData(t, err)
}

func TestCoerceBooleanFromYN(t *testing.T) {
	v, err := coerce("Y", col(domain.TypeBoolean, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(bool) != true {
		t.Errorf("v = %v, want true", v)
	}
	v, err = coerce("N", col(domain.TypeBoolean, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(bool) != false {
		t.Errorf("v = %v, want false", v)
	}
}

func TestCoerceBooleanFromIntZeroOrOne(t *testing.T) {
	v, err := coerce(int64(1), col(domain.TypeBoolean, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(bool) != true {
		t.Errorf("v = %v, want true", v)
	}
}

func TestCoerceBooleanFromUnrecognizedValueFails(t *testing.T) {
	_, err := coerce(int64(2), col(domain.TypeBoolean, 0))
	wantPermanentData(t, err)
}

func TestCoerceUnknownTargetTypeFails(t *testing.T) {
	_, err := coerce("x", col(domain.SemanticType("bogus"), 0))
	wantPermanentData(t, err)
}
