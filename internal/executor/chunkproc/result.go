// Package chunkproc implements the Chunk Processor (spec.md §4.7):
// borrow connections, stream source rows, apply column mappings and
// derivations, coerce types, load under the mapping's load-mode, and
// commit — all inside one chunk-scoped transaction.
package chunkproc

import "github.com/etlcore/orchestrator/internal/domain"

// Result is the ChunkResult spec.md §4.7 step 7 describes.
type Result struct {
	ChunkIndex             int
	RowsRead               int64
	RowsSucceeded          int64
	RowsFailed             int64
	RowErrors              []domain.RowError
	RowErrorsTruncated     bool
	LastCheckpointObserved string // highest checkpoint-column value seen (KEY) or cumulative count (ORDINAL)
}
