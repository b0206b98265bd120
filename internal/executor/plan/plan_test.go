package plan

import (
	"context"
	"testing"

	"github.com/etlcore/orchestrator/internal/domain"
)

type fakeStats struct {
	count    int64
	countOK  bool
	countErr error
	maxValue string
	maxErr   error
}

func (f *fakeStats) EstimateRowCount(ctx context.Context, m *domain.MappingDefinition) (int64, bool, error) {
	return f.count, f.countOK, f.countErr
}

func (f *fakeStats) MaxCheckpointValue(ctx context.Context, m *domain.MappingDefinition) (string, error) {
	return f.maxValue, f.maxErr
}

func checkpointCol(col string) *domain.MappingDefinition {
	c := col
	return &domain.MappingDefinition{
		MappingRef:       "m1",
		CheckpointColumn: &c,
		BatchSize:        100,
	}
}

func TestBuildNoneProducesSingleChunk(t *testing.T) {
	p := New(&fakeStats{})
	plan, err := p.Build(context.Background(), &domain.MappingDefinition{}, domain.CheckpointNone, "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Chunks) != 1 || plan.Chunks[0].Strategy != domain.ChunkStrategyNone {
		t.Fatalf("plan = %+v, want single NONE chunk", plan)
	}
}

func TestBuildKeyProducesSteppedChunks(t *testing.T) {
	stats := &fakeStats{count: 1000, countOK: true, maxValue: "2000"}
	p := New(stats)
	m := checkpointCol("id")
	plan, err := p.Build(context.Background(), m, domain.CheckpointKey, "0", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Strategy != domain.ChunkStrategyKey {
		t.Fatalf("strategy = %v, want KEY", plan.Strategy)
	}
	if len(plan.Chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	// chunks must be contiguous and cover [0, 2000]
	if plan.Chunks[0].LowerBound != "0" {
		t.Errorf("first lower bound = %q, want 0", plan.Chunks[0].LowerBound)
	}
	last := plan.Chunks[len(plan.Chunks)-1]
	if last.UpperBound != "2000" {
		t.Errorf("last upper bound = %q, want 2000", last.UpperBound)
	}
	for i := 1; i < len(plan.Chunks); i++ {
		if plan.Chunks[i].LowerBound != plan.Chunks[i-1].UpperBound {
			t.Errorf("chunk %d lower bound %q != previous upper bound %q", i, plan.Chunks[i].LowerBound, plan.Chunks[i-1].UpperBound)
		}
	}
}

func TestBuildKeyFallsBackToOrdinalWhenEstimateUnavailable(t *testing.T) {
	stats := &fakeStats{countOK: false}
	p := New(stats)
	m := checkpointCol("id")
	plan, err := p.Build(context.Background(), m, domain.CheckpointKey, "0", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Strategy != domain.ChunkStrategyOrdinal {
		t.Fatalf("strategy = %v, want fallback ORDINAL", plan.Strategy)
	}
}

func TestBuildOrdinalProducesFixedSizeWindows(t *testing.T) {
	stats := &fakeStats{count: 250, countOK: true}
	p := New(stats)
	m := &domain.MappingDefinition{MappingRef: "m1", BatchSize: 100}
	plan, err := p.Build(context.Background(), m, domain.CheckpointOrdinal, "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Chunks) != 3 {
		t.Fatalf("chunk count = %d, want 3 (100+100+50)", len(plan.Chunks))
	}
	if plan.Chunks[2].UpperBound != "250" {
		t.Errorf("last upper bound = %q, want 250", plan.Chunks[2].UpperBound)
	}
}

func TestBuildOrdinalResumesFromCheckpoint(t *testing.T) {
	stats := &fakeStats{count: 250, countOK: true}
	p := New(stats)
	m := &domain.MappingDefinition{MappingRef: "m1", BatchSize: 100}
	plan, err := p.Build(context.Background(), m, domain.CheckpointOrdinal, "100", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Chunks[0].LowerBound != "100" {
		t.Errorf("first lower bound = %q, want 100", plan.Chunks[0].LowerBound)
	}
}
