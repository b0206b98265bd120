package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeRequestGateway struct {
	requests map[string]*domain.JobRequest

	claimErr     error
	heartbeatErr error
	markProcErr  error
	markTermErr  error
	cancelErr    error
	reclaimCount int
	reclaimErr   error
}

func newFakeRequestGateway() *fakeRequestGateway {
	return &fakeRequestGateway{requests: make(map[string]*domain.JobRequest)}
}

func (f *fakeRequestGateway) Enqueue(ctx context.Context, mappingRef string, params domain.RequestParameters) (*domain.JobRequest, error) {
	r := &domain.JobRequest{ID: "req-1", MappingRef: mappingRef, Status: domain.StatusNew, CreatedAt: time.Now(), Parameters: params}
	f.requests[r.ID] = r
	return r, nil
}

func (f *fakeRequestGateway) Claim(ctx context.Context, owner string, leaseDuration time.Duration, limit int) ([]*domain.JobRequest, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	var claimed []*domain.JobRequest
	for _, r := range f.requests {
		if r.Status == domain.StatusNew && len(claimed) < limit {
			r.Status = domain.StatusClaimed
			owner := owner
			r.ClaimOwner = &owner
			claimed = append(claimed, r)
		}
	}
	return claimed, nil
}

func (f *fakeRequestGateway) Heartbeat(ctx context.Context, requestID, owner string, leaseDuration time.Duration) error {
	return f.heartbeatErr
}

func (f *fakeRequestGateway) Transition(ctx context.Context, requestID string, expected, next domain.RequestStatus) error {
	return nil
}

func (f *fakeRequestGateway) MarkProcessing(ctx context.Context, requestID, owner string) error {
	if f.markProcErr != nil {
		return f.markProcErr
	}
	if r, ok := f.requests[requestID]; ok {
		r.Status = domain.StatusProcessing
	}
	return nil
}

func (f *fakeRequestGateway) MarkTerminal(ctx context.Context, requestID string, status domain.RequestStatus) error {
	if f.markTermErr != nil {
		return f.markTermErr
	}
	if r, ok := f.requests[requestID]; ok {
		r.Status = status
	}
	return nil
}

func (f *fakeRequestGateway) ReclaimExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	return f.reclaimCount, f.reclaimErr
}

func (f *fakeRequestGateway) Cancel(ctx context.Context, requestID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	if r, ok := f.requests[requestID]; ok {
		r.Status = domain.StatusCancelled
	}
	return nil
}

func (f *fakeRequestGateway) GetByID(ctx context.Context, requestID string) (*domain.JobRequest, error) {
	r, ok := f.requests[requestID]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return r, nil
}

func (f *fakeRequestGateway) List(ctx context.Context, status domain.RequestStatus, cursor string, limit int) ([]*domain.JobRequest, string, error) {
	var out []*domain.JobRequest
	for _, r := range f.requests {
		out = append(out, r)
	}
	return out, "", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnqueueCreatesNewRequest(t *testing.T) {
	gw := newFakeRequestGateway()
	q := New(gw, testLogger())
	req, err := q.Enqueue(context.Background(), "mapping-1", domain.RequestParameters{Source: "MANUAL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != domain.StatusNew {
		t.Errorf("status = %v, want NEW", req.Status)
	}
}

func TestClaimObservesLatencyAndTransitionMetrics(t *testing.T) {
	gw := newFakeRequestGateway()
	q := New(gw, testLogger())
	if _, err := q.Enqueue(context.Background(), "mapping-1", domain.RequestParameters{}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	transitionCounter := metrics.QueueTransitionsTotal.WithLabelValues(string(domain.StatusClaimed), "ok")
	before := testutil.ToFloat64(transitionCounter)
	claimed, err := q.Claim(context.Background(), "worker-1", time.Minute, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("claimed %d requests, want 1", len(claimed))
	}
	if claimed[0].Status != domain.StatusClaimed {
		t.Errorf("status = %v, want CLAIMED", claimed[0].Status)
	}
	after := testutil.ToFloat64(transitionCounter)
	if after != before+1 {
		t.Errorf("transitions counter = %v, want %v", after, before+1)
	}
}

func TestClaimPropagatesGatewayError(t *testing.T) {
	gw := newFakeRequestGateway()
	gw.claimErr = errors.New("boom")
	q := New(gw, testLogger())
	if _, err := q.Claim(context.Background(), "worker-1", time.Minute, 10); err == nil {
		t.Fatal("expected error")
	}
}

func TestCancelMarksRequestCancelled(t *testing.T) {
	gw := newFakeRequestGateway()
	q := New(gw, testLogger())
	req, _ := q.Enqueue(context.Background(), "mapping-1", domain.RequestParameters{})
	if err := q.Cancel(context.Background(), req.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := q.GetByID(context.Background(), req.ID)
	if got.Status != domain.StatusCancelled {
		t.Errorf("status = %v, want CANCELLED", got.Status)
	}
}

func TestReclaimExpiredReturnsCountWithoutMetricOnZero(t *testing.T) {
	gw := newFakeRequestGateway()
	gw.reclaimCount = 0
	q := New(gw, testLogger())
	reclaimed := metrics.ReclaimedTotal.WithLabelValues("lease_expired")
	before := testutil.ToFloat64(reclaimed)
	n, err := q.ReclaimExpired(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
	if after := testutil.ToFloat64(reclaimed); after != before {
		t.Errorf("reclaimed counter = %v, want %v", after, before)
	}
}

func TestReclaimExpiredPropagatesCount(t *testing.T) {
	gw := newFakeRequestGateway()
	gw.reclaimCount = 3
	q := New(gw, testLogger())
	n, err := q.ReclaimExpired(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
}
