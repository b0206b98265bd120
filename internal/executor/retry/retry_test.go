package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/etlcore/orchestrator/internal/orcherr"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want orcherr.Classification
	}{
		{"nil", nil, orcherr.ClassUnknown},
		{"cancelled sentinel", orcherr.ErrCancelled, orcherr.ClassCancelled},
		{"context cancelled", context.Canceled, orcherr.ClassCancelled},
		{"transient", orcherr.NewTransientIOError("dial", errors.New("reset")), orcherr.ClassTransient},
		{"permanent system", orcherr.NewPermanentSystemError("begin", errors.New("no such table")), orcherr.ClassPermanentSystem},
		{"permanent data", orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, "bad value"), orcherr.ClassPermanentData},
		{"unknown wrapped error defaults to permanent system", errors.New("boom"), orcherr.ClassPermanentSystem},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.err); got != c.want {
				t.Errorf("Classify(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}

func TestRunSucceedsWithoutRetry(t *testing.T) {
	c := New(Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})
	attempts := 0
	class, err := c.Run(context.Background(), func(ctx context.Context, n int) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if class != orcherr.ClassUnknown {
		t.Errorf("classification = %v, want ClassUnknown", class)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRunRetriesTransientThenSucceeds(t *testing.T) {
	c := New(Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	attempts := 0
	class, err := c.Run(context.Background(), func(ctx context.Context, n int) error {
		attempts++
		if attempts < 3 {
			return orcherr.NewTransientIOError("query", errors.New("timeout"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if class != orcherr.ClassUnknown {
		t.Errorf("classification = %v, want ClassUnknown", class)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRunStopsImmediatelyOnPermanentError(t *testing.T) {
	c := New(Config{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	attempts := 0
	_, err := c.Run(context.Background(), func(ctx context.Context, n int) error {
		attempts++
		return orcherr.NewPermanentDataError(orcherr.CodeTypeCoercion, "bad")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on permanent)", attempts)
	}
}

func TestRunExhaustsRetriesOnPersistentTransient(t *testing.T) {
	c := New(Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
	attempts := 0
	class, err := c.Run(context.Background(), func(ctx context.Context, n int) error {
		attempts++
		return orcherr.NewTransientIOError("query", errors.New("timeout"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if class != orcherr.ClassTransient {
		t.Errorf("classification = %v, want ClassTransient", class)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (max-retries+1)", attempts)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	c := New(Config{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	attempts := 0
	class, err := c.Run(context.Background(), func(ctx context.Context, n int) error {
		attempts++
		return orcherr.ErrCancelled
	})
	if !errors.Is(err, orcherr.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if class != orcherr.ClassCancelled {
		t.Errorf("classification = %v, want ClassCancelled", class)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
