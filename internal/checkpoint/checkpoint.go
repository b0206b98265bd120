// Package checkpoint implements the Checkpoint Controller (spec.md §4.6):
// effective-strategy resolution and the read/write protocol the
// Parallel Executor's coordinator uses to make restarts safe.
package checkpoint

import (
	"context"
	"fmt"
	"strconv"

	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/metadata"
)

// EffectiveStrategy resolves AUTO against whether a checkpoint column is
// configured, per spec.md §4.6.
func EffectiveStrategy(m *domain.MappingDefinition) domain.CheckpointStrategy {
	switch m.CheckpointStrategy {
	case domain.CheckpointAuto:
		if m.CheckpointColumn != nil && *m.CheckpointColumn != "" {
			return domain.CheckpointKey
		}
		return domain.CheckpointOrdinal
	default:
		return m.CheckpointStrategy
	}
}

// Controller wraps the run-log gateway with the checkpoint read/write
// protocol, so the executor never touches checkpoint_value directly.
type Controller struct {
	runLogs metadata.RunLogGateway
}

func New(runLogs metadata.RunLogGateway) *Controller {
	return &Controller{runLogs: runLogs}
}

// ReadCheckpoint returns the resume point for mappingRef: "" means start
// from scratch, any other value is a KEY column value or an ORDINAL
// cumulative row count, interpreted by the Chunk Planner.
func (c *Controller) ReadCheckpoint(ctx context.Context, strategy domain.CheckpointStrategy, mappingRef string) (string, error) {
	if strategy == domain.CheckpointNone {
		return "", nil
	}
	return c.runLogs.LastCheckpoint(ctx, mappingRef)
}

// WriteCheckpoint persists the checkpoint value (a KEY column value or
// an ORDINAL cumulative count) for the run's latest IN_PROGRESS row.
func (c *Controller) WriteCheckpoint(ctx context.Context, runID, value string) error {
	return c.runLogs.WriteCheckpoint(ctx, runID, value)
}

// Ordinal formats a cumulative processed-row count as the checkpoint
// value ORDINAL strategy expects.
func Ordinal(cumulativeRows int64) string {
	return strconv.FormatInt(cumulativeRows, 10)
}

// ParseOrdinal parses a previously written ORDINAL checkpoint value.
func ParseOrdinal(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: invalid ordinal value %q: %w", value, err)
	}
	return n, nil
}
