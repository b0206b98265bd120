// Package retry implements the Retry Controller (spec.md §4.5):
// exponential backoff with full jitter over chunk attempts, classifying
// each failure as transient, permanent, or cancelled. Backoff shape is
// generalized from the teacher's scheduler.retryDelay.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/etlcore/orchestrator/internal/orcherr"
)

// Config mirrors spec.md §4.5's configuration keys.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Attempt is the chunk-processing function the controller drives: it
// runs the full extract-transform-load-commit cycle for one chunk and
// returns a classified error on failure.
type Attempt func(ctx context.Context, attemptNum int) error

// Controller runs Attempt up to Config.MaxRetries+1 times total, backing
// off between transient failures and stopping immediately on permanent
// or cancelled ones.
type Controller struct {
	cfg Config
}

func New(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// Run drives attempt to completion, returning the last error if every
// attempt is exhausted. classification is the outcome's bucket, used by
// the caller for metrics.
func (c *Controller) Run(ctx context.Context, attempt Attempt) (classification orcherr.Classification, err error) {
	for n := 0; ; n++ {
		err = attempt(ctx, n)
		if err == nil {
			return orcherr.ClassUnknown, nil
		}

		classification = Classify(err)

		if classification == orcherr.ClassCancelled {
			return classification, err
		}
		if classification != orcherr.ClassTransient {
			return classification, err
		}
		if n >= c.cfg.MaxRetries {
			return classification, err
		}

		delay := c.backoff(n)
		select {
		case <-ctx.Done():
			return orcherr.ClassCancelled, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff computes the full-jitter exponential delay for attempt n
// (0-based): a uniform random value in [0, min(maxDelay, initial *
// multiplier^n)].
func (c *Controller) backoff(n int) time.Duration {
	initial := c.cfg.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	mult := c.cfg.Multiplier
	if mult <= 0 {
		mult = 2
	}
	maxDelay := c.cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Minute
	}

	capped := time.Duration(float64(initial) * math.Pow(mult, float64(n)))
	if capped > maxDelay || capped <= 0 {
		capped = maxDelay
	}
	return time.Duration(rand.Int63n(int64(capped) + 1))
}

// Classify buckets err per spec.md §4.5's classification table.
func Classify(err error) orcherr.Classification {
	if err == nil {
		return orcherr.ClassUnknown
	}
	if errors.Is(err, orcherr.ErrCancelled) || errors.Is(err, context.Canceled) {
		return orcherr.ClassCancelled
	}

	var transient *orcherr.TransientIOError
	if errors.As(err, &transient) {
		return orcherr.ClassTransient
	}

	var permSystem *orcherr.PermanentSystemError
	if errors.As(err, &permSystem) {
		return orcherr.ClassPermanentSystem
	}

	var permData *orcherr.PermanentDataError
	if errors.As(err, &permData) {
		return orcherr.ClassPermanentData
	}

	return orcherr.ClassPermanentSystem
}
