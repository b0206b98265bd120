package chunkproc

import (
	"fmt"
	"strings"

	"github.com/etlcore/orchestrator/internal/dialect"
	"github.com/etlcore/orchestrator/internal/domain"
)

// buildSourceQuery wraps the mapping's source query with the chunk's
// bound filter, per spec.md §4.4's "planner appends an ORDER BY on the
// checkpoint-column (KEY) or stable sort tuple (ORDINAL)" rule. ORDINAL
// chunks assume the mapping's source query already carries a
// deterministic ORDER BY — a documented precondition (spec.md §4.6).
func buildSourceQuery(d dialect.Dialect, m *domain.MappingDefinition, chunk domain.ChunkDescriptor) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(m.SourceQuery), ";")

	switch chunk.Strategy {
	case domain.ChunkStrategyNone:
		return base, nil

	case domain.ChunkStrategyKey:
		if m.CheckpointColumn == nil || *m.CheckpointColumn == "" {
			return "", fmt.Errorf("chunkproc: KEY strategy requires checkpoint_column")
		}
		col := d.QuoteIdentifier(*m.CheckpointColumn)
		return fmt.Sprintf(
			"SELECT * FROM (%s) AS chunk_source WHERE %s > %s AND %s <= %s ORDER BY %s",
			base, col, quoteBound(chunk.LowerBound), col, quoteBound(chunk.UpperBound), col,
		), nil

	case domain.ChunkStrategyOrdinal:
		offset := parseOffset(chunk.LowerBound)
		if chunk.UpperBound == "" {
			// Open-ended chunk: row-count estimation wasn't available at
			// plan time, so there's no upper bound to stop at. Read
			// everything from offset onward in this one pass rather than
			// rendering a bounded FETCH that would silently cap the run
			// at one batch.
			return fmt.Sprintf("%s %s", base, d.OffsetOnly(offset)), nil
		}
		limit := parseOffset(chunk.UpperBound) - offset
		if limit <= 0 {
			limit = int64(m.BatchSize)
		}
		return fmt.Sprintf("%s %s", base, d.OffsetFetch(offset, limit)), nil

	default:
		return "", fmt.Errorf("chunkproc: unknown chunk strategy %q", chunk.Strategy)
	}
}

func quoteBound(b string) string {
	// Bounds are always numeric in the current planner (see
	// internal/executor/plan); quoting as a bare literal keeps the
	// filter dialect-agnostic without a placeholder round-trip.
	if b == "" {
		return "0"
	}
	return b
}

func parseOffset(s string) int64 {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int64(r-'0')
	}
	return n
}

// buildInsert renders an INSERT statement for one row over cols, with an
// UPSERT tail when loadMode is UPSERT.
func buildInsert(d dialect.Dialect, m *domain.MappingDefinition, cols []domain.ColumnMapping, loadMode domain.LoadMode) string {
	quotedCols := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = d.QuoteIdentifier(c.TargetColumn)
		placeholders[i] = d.Placeholder(i + 1)
	}

	table := dialect.QualifyTable(d, m.TargetSchema, m.TargetTable)
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))

	if loadMode == domain.LoadModeUpsert {
		keyCols := make([]string, 0)
		updateCols := make([]string, 0)
		for _, c := range cols {
			if c.KeyFlag {
				keyCols = append(keyCols, c.TargetColumn)
			} else {
				updateCols = append(updateCols, c.TargetColumn)
			}
		}
		if len(keyCols) > 0 && len(updateCols) > 0 {
			stmt = stmt + " " + d.UpsertClause(keyCols, updateCols)
		}
	}

	return stmt
}
