// Package plan implements the Chunk Planner (spec.md §4.4): given a
// mapping's effective checkpoint strategy and a starting checkpoint, it
// produces the deterministic, disjoint ChunkPlan the executor's worker
// pool consumes.
package plan

import (
	"context"
	"fmt"

	"github.com/etlcore/orchestrator/internal/checkpoint"
	"github.com/etlcore/orchestrator/internal/domain"
)

// SourceStats is the minimal source-introspection surface the planner
// needs: a cheap (possibly capped) row count and, for KEY strategy, the
// current maximum value of the checkpoint column. Implemented by
// internal/executor/chunkproc against the source connection pool.
type SourceStats interface {
	// EstimateRowCount returns an approximate row count for the source
	// query, capped at some implementation-defined ceiling; ok is false
	// when estimation isn't available (e.g. the driver doesn't support a
	// cheap count), in which case the planner falls back to ORDINAL.
	EstimateRowCount(ctx context.Context, m *domain.MappingDefinition) (count int64, ok bool, err error)

	// MaxCheckpointValue returns the source's current maximum value of
	// the checkpoint column, as the column's native ordering would
	// compare it — represented as an opaque bound string.
	MaxCheckpointValue(ctx context.Context, m *domain.MappingDefinition) (string, error)
}

// Planner builds ChunkPlans.
type Planner struct {
	stats SourceStats
}

func New(stats SourceStats) *Planner {
	return &Planner{stats: stats}
}

// Build produces the ChunkPlan for one run, given the mapping's
// effective strategy and the checkpoint to resume from ("" means start
// from scratch).
func (p *Planner) Build(ctx context.Context, m *domain.MappingDefinition, effective domain.CheckpointStrategy, lastCheckpoint string, parallel bool) (*domain.ChunkPlan, error) {
	switch effective {
	case domain.CheckpointNone:
		return p.buildNone(), nil
	case domain.CheckpointKey:
		plan, err := p.buildKey(ctx, m, lastCheckpoint)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			return plan, nil
		}
		// estimation unavailable: fall back to ORDINAL, per spec.md §4.4.
		return p.buildOrdinal(ctx, m, lastCheckpoint)
	case domain.CheckpointOrdinal:
		return p.buildOrdinal(ctx, m, lastCheckpoint)
	default:
		return nil, fmt.Errorf("plan: unknown checkpoint strategy %q", effective)
	}
}

func (p *Planner) buildNone() *domain.ChunkPlan {
	return &domain.ChunkPlan{
		Strategy: domain.ChunkStrategyNone,
		Chunks: []domain.ChunkDescriptor{
			{ChunkIndex: 0, Strategy: domain.ChunkStrategyNone},
		},
	}
}

// buildKey produces chunks `C > lastCheckpoint AND C <= lastCheckpoint +
// step`, sized so each chunk yields roughly m.BatchSize rows, estimated
// from the source's row count and current max checkpoint value. Returns
// a nil plan (not an error) when estimation is unavailable, signaling
// the caller to fall back to ORDINAL.
func (p *Planner) buildKey(ctx context.Context, m *domain.MappingDefinition, lastCheckpoint string) (*domain.ChunkPlan, error) {
	count, ok, err := p.stats.EstimateRowCount(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("plan: estimate row count: %w", err)
	}
	if !ok || count <= 0 {
		return nil, nil
	}

	maxValue, err := p.stats.MaxCheckpointValue(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("plan: max checkpoint value: %w", err)
	}
	if maxValue == "" {
		return nil, nil
	}

	lowF, maxF, ok := parseNumericBounds(lastCheckpoint, maxValue)
	if !ok {
		// Checkpoint column isn't numeric-comparable in a way the
		// planner can step through; fall back to ORDINAL.
		return nil, nil
	}

	span := maxF - lowF
	if span <= 0 {
		return &domain.ChunkPlan{Strategy: domain.ChunkStrategyKey}, nil
	}

	batchSize := m.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}
	numChunks := (count + int64(batchSize) - 1) / int64(batchSize)
	if numChunks < 1 {
		numChunks = 1
	}
	step := span / float64(numChunks)
	if step <= 0 {
		step = span
	}

	var chunks []domain.ChunkDescriptor
	lower := lowF
	idx := 0
	for lower < maxF {
		upper := lower + step
		if upper > maxF {
			upper = maxF
		}
		chunks = append(chunks, domain.ChunkDescriptor{
			ChunkIndex: idx,
			LowerBound: formatNumericBound(lower),
			UpperBound: formatNumericBound(upper),
			Strategy:   domain.ChunkStrategyKey,
		})
		lower = upper
		idx++
	}

	return &domain.ChunkPlan{Strategy: domain.ChunkStrategyKey, Chunks: chunks}, nil
}

// buildOrdinal produces fixed-size OFFSET/FETCH windows starting at the
// cumulative row count already processed (the ORDINAL checkpoint value).
func (p *Planner) buildOrdinal(ctx context.Context, m *domain.MappingDefinition, lastCheckpoint string) (*domain.ChunkPlan, error) {
	startOffset, err := checkpoint.ParseOrdinal(lastCheckpoint)
	if err != nil {
		return nil, err
	}

	count, ok, err := p.stats.EstimateRowCount(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("plan: estimate row count for ordinal: %w", err)
	}

	batchSize := int64(m.BatchSize)
	if batchSize <= 0 {
		batchSize = 1000
	}

	var chunks []domain.ChunkDescriptor
	idx := 0
	offset := startOffset
	if !ok || count <= 0 {
		// No estimate available: produce a single open-ended chunk with
		// no upper bound. buildSourceQuery renders this as an unbounded
		// offset scan, so the chunk processor reads every remaining row
		// in one pass instead of stopping after one batch.
		chunks = append(chunks, domain.ChunkDescriptor{
			ChunkIndex: 0,
			LowerBound: checkpoint.Ordinal(offset),
			UpperBound: "",
			Strategy:   domain.ChunkStrategyOrdinal,
		})
		return &domain.ChunkPlan{Strategy: domain.ChunkStrategyOrdinal, Chunks: chunks}, nil
	}

	for offset < count {
		upper := offset + batchSize
		if upper > count {
			upper = count
		}
		chunks = append(chunks, domain.ChunkDescriptor{
			ChunkIndex: idx,
			LowerBound: checkpoint.Ordinal(offset),
			UpperBound: checkpoint.Ordinal(upper),
			Strategy:   domain.ChunkStrategyOrdinal,
		})
		offset = upper
		idx++
	}

	return &domain.ChunkPlan{Strategy: domain.ChunkStrategyOrdinal, Chunks: chunks}, nil
}
