package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/executor"
	"github.com/etlcore/orchestrator/internal/metadata"
	"github.com/etlcore/orchestrator/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRequestGateway struct {
	requests map[string]*domain.JobRequest
}

func newFakeRequestGateway() *fakeRequestGateway {
	return &fakeRequestGateway{requests: make(map[string]*domain.JobRequest)}
}

func (f *fakeRequestGateway) Enqueue(_ context.Context, mappingRef string, params domain.RequestParameters) (*domain.JobRequest, error) {
	req := &domain.JobRequest{
		ID:         "req-1",
		MappingRef: mappingRef,
		Status:     domain.StatusNew,
		CreatedAt:  time.Now(),
		Parameters: params,
	}
	f.requests[req.ID] = req
	return req, nil
}

func (f *fakeRequestGateway) Claim(context.Context, string, time.Duration, int) ([]*domain.JobRequest, error) {
	return nil, nil
}

func (f *fakeRequestGateway) Heartbeat(context.Context, string, string, time.Duration) error {
	return nil
}

func (f *fakeRequestGateway) Transition(context.Context, string, domain.RequestStatus, domain.RequestStatus) error {
	return nil
}

func (f *fakeRequestGateway) MarkProcessing(context.Context, string, string) error { return nil }

func (f *fakeRequestGateway) MarkTerminal(context.Context, string, domain.RequestStatus) error {
	return nil
}

func (f *fakeRequestGateway) ReclaimExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func (f *fakeRequestGateway) Cancel(_ context.Context, requestID string) error {
	req, ok := f.requests[requestID]
	if !ok {
		return domain.ErrRequestNotFound
	}
	req.Status = domain.StatusCancelled
	return nil
}

func (f *fakeRequestGateway) GetByID(_ context.Context, requestID string) (*domain.JobRequest, error) {
	req, ok := f.requests[requestID]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return req, nil
}

func (f *fakeRequestGateway) List(context.Context, domain.RequestStatus, string, int) ([]*domain.JobRequest, string, error) {
	items := make([]*domain.JobRequest, 0, len(f.requests))
	for _, r := range f.requests {
		items = append(items, r)
	}
	return items, "", nil
}

type fakeRunLogGateway struct {
	latest *domain.RunLog
}

func (f *fakeRunLogGateway) StartRun(context.Context, string, string) (*domain.RunLog, error) {
	return nil, nil
}
func (f *fakeRunLogGateway) UpdateProgress(context.Context, string, int64, int64, int64) error {
	return nil
}
func (f *fakeRunLogGateway) WriteCheckpoint(context.Context, string, string) error { return nil }
func (f *fakeRunLogGateway) Finish(context.Context, string, domain.RunStatus, int64, int64, int64, string, bool) error {
	return nil
}
func (f *fakeRunLogGateway) LastCheckpoint(context.Context, string) (string, error) { return "", nil }
func (f *fakeRunLogGateway) InsertRowErrors(context.Context, []domain.RowError) error {
	return nil
}
func (f *fakeRunLogGateway) GetByID(context.Context, string) (*domain.RunLog, error) {
	return nil, nil
}

func (f *fakeRunLogGateway) GetLatestByRequestID(_ context.Context, _ string) (*domain.RunLog, error) {
	if f.latest == nil {
		return nil, domain.ErrRunLogNotFound
	}
	return f.latest, nil
}

func newTestCore(requests *fakeRequestGateway, runLogs *fakeRunLogGateway) *Core {
	logger := testLogger()
	q := queue.New(requests, logger)
	gw := &metadata.Gateway{Requests: requests, RunLogs: runLogs}
	ex := executor.New(executor.DefaultConfig(), gw, q, nil, nil, logger)
	return New(q, ex, runLogs)
}

func TestEnqueueReturnsNewRequestID(t *testing.T) {
	requests := newFakeRequestGateway()
	core := newTestCore(requests, &fakeRunLogGateway{})

	id, err := core.Enqueue(context.Background(), "mapping-1", domain.RequestParameters{LoadMode: domain.LoadModeInsert})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty request id")
	}
	if requests.requests[id].MappingRef != "mapping-1" {
		t.Fatalf("mapping ref not persisted, got %q", requests.requests[id].MappingRef)
	}
}

func TestCancelMarksRequestCancelled(t *testing.T) {
	requests := newFakeRequestGateway()
	core := newTestCore(requests, &fakeRunLogGateway{})

	id, err := core.Enqueue(context.Background(), "mapping-1", domain.RequestParameters{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := core.Cancel(context.Background(), id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if requests.requests[id].Status != domain.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", requests.requests[id].Status)
	}
}

func TestCancelPropagatesNotFound(t *testing.T) {
	requests := newFakeRequestGateway()
	core := newTestCore(requests, &fakeRunLogGateway{})

	err := core.Cancel(context.Background(), "missing")
	if !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestStatusWithoutAnyRunLeavesLastRunIDEmpty(t *testing.T) {
	requests := newFakeRequestGateway()
	core := newTestCore(requests, &fakeRunLogGateway{})

	id, err := core.Enqueue(context.Background(), "mapping-1", domain.RequestParameters{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	st, err := core.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.LastRunID != "" {
		t.Fatalf("expected empty LastRunID, got %q", st.LastRunID)
	}
	if st.ProgressSnapshot != nil {
		t.Fatal("expected no progress snapshot for a request with no active run")
	}
}

func TestStatusResolvesLastRunID(t *testing.T) {
	requests := newFakeRequestGateway()
	runLogs := &fakeRunLogGateway{latest: &domain.RunLog{RunID: "run-42"}}
	core := newTestCore(requests, runLogs)

	id, err := core.Enqueue(context.Background(), "mapping-1", domain.RequestParameters{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	st, err := core.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.LastRunID != "run-42" {
		t.Fatalf("expected run-42, got %q", st.LastRunID)
	}
}

func TestStatusPropagatesRequestNotFound(t *testing.T) {
	requests := newFakeRequestGateway()
	core := newTestCore(requests, &fakeRunLogGateway{})

	_, err := core.Status(context.Background(), "missing")
	if !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestListReturnsEnqueuedRequests(t *testing.T) {
	requests := newFakeRequestGateway()
	core := newTestCore(requests, &fakeRunLogGateway{})

	if _, err := core.Enqueue(context.Background(), "mapping-1", domain.RequestParameters{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	items, _, err := core.List(context.Background(), "", "", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 request, got %d", len(items))
	}
}
