package progress

import (
	"context"
	"testing"
	"time"
)

type fakeSink struct {
	published []Snapshot
}

func (f *fakeSink) Publish(ctx context.Context, snap Snapshot) {
	f.published = append(f.published, snap)
}

func TestRecordChunkCoalescesPublishes(t *testing.T) {
	sink := &fakeSink{}
	tr := New("run-1", 1000, sink, time.Hour)

	tr.RecordChunk(context.Background(), 100, 95, 5, false)
	tr.RecordChunk(context.Background(), 100, 100, 0, false)

	if len(sink.published) != 1 {
		t.Fatalf("expected exactly one coalesced publish, got %d", len(sink.published))
	}

	snap := tr.Snapshot()
	if snap.RowsProcessed != 200 {
		t.Fatalf("rows processed = %d, want 200", snap.RowsProcessed)
	}
	if snap.Percentage == nil || *snap.Percentage != 20 {
		t.Fatalf("percentage = %v, want 20", snap.Percentage)
	}
}

func TestUnknownTotalYieldsNullPercentage(t *testing.T) {
	tr := New("run-2", 0, nil, time.Second)
	tr.RecordChunk(context.Background(), 50, 50, 0, false)
	snap := tr.Snapshot()
	if snap.Percentage != nil {
		t.Fatalf("expected nil percentage when estimated total is unknown")
	}
}

func TestFinishAlwaysPublishes(t *testing.T) {
	sink := &fakeSink{}
	tr := New("run-3", 100, sink, time.Hour)
	tr.RecordChunk(context.Background(), 10, 10, 0, false)
	tr.Finish(context.Background())
	// The first RecordChunk publishes at once (nothing was published yet);
	// Finish adds the final publish despite the hour-long interval.
	if len(sink.published) != 2 {
		t.Fatalf("expected the first chunk's publish plus the final publish, got %d", len(sink.published))
	}
}
