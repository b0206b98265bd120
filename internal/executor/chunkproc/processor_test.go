package chunkproc

import (
	"errors"
	"testing"

	"github.com/etlcore/orchestrator/internal/orcherr"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyLoadErrorDuplicateKeyIsPerRow(t *testing.T) {
	err := classifyLoadError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	var dataErr *orcherr.PermanentDataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected PermanentDataError, got %T: %v", err, err)
	}
	if dataErr.Code != orcherr.CodeDuplicateKey {
		t.Errorf("got code %q, want %q", dataErr.Code, orcherr.CodeDuplicateKey)
	}
}

func TestClassifyLoadErrorOtherConstraintViolationIsPerRow(t *testing.T) {
	err := classifyLoadError(&pgconn.PgError{Code: "23502", Message: "null value in column violates not-null constraint"})

	var dataErr *orcherr.PermanentDataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected PermanentDataError, got %T: %v", err, err)
	}
	if dataErr.Code != orcherr.CodeTypeCoercion {
		t.Errorf("got code %q, want %q", dataErr.Code, orcherr.CodeTypeCoercion)
	}
}

func TestClassifyLoadErrorStructuralFailuresAreChunkFatal(t *testing.T) {
	cases := []string{
		"42P01", // undefined_table
		"42703", // undefined_column
		"42601", // syntax_error
		"42501", // insufficient_privilege
	}
	for _, code := range cases {
		err := classifyLoadError(&pgconn.PgError{Code: code, Message: "structural failure"})
		var sysErr *orcherr.PermanentSystemError
		if !errors.As(err, &sysErr) {
			t.Errorf("code %s: expected PermanentSystemError, got %T: %v", code, err, err)
		}
	}
}

func TestClassifyLoadErrorNonPgErrorFallsBackToPerRow(t *testing.T) {
	err := classifyLoadError(errors.New("boom"))

	var dataErr *orcherr.PermanentDataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected PermanentDataError, got %T: %v", err, err)
	}
}
