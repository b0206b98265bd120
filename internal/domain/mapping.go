package domain

import "errors"

var (
	ErrMappingNotFound = errors.New("mapping definition not found")
)

// CheckpointStrategy, MappingDefinition field. AUTO resolves to KEY or
// ORDINAL at read time (internal/checkpoint), per spec.md §4.6.
type CheckpointStrategy string

const (
	CheckpointAuto     CheckpointStrategy = "AUTO"
	CheckpointKey      CheckpointStrategy = "KEY"
	CheckpointOrdinal  CheckpointStrategy = "ORDINAL"
	CheckpointNone     CheckpointStrategy = "NONE"
)

// SemanticType is the controlled target-type vocabulary spec.md §3 names
// for ColumnMapping.TargetType — deliberately not a raw SQL type, so the
// Chunk Processor's coercion rules (spec.md §4.7 step 4) stay dialect
// independent.
type SemanticType string

const (
	TypeInteger     SemanticType = "integer"
	TypeDecimal     SemanticType = "decimal"
	TypeTextBounded SemanticType = "text-bounded"
	TypeTimestamp   SemanticType = "timestamp"
	TypeBoolean     SemanticType = "boolean"
	TypeBinary      SemanticType = "binary"
)

// AuditRole marks a ColumnMapping as system-managed metadata rather than
// user data. Audit columns always sort after non-audit columns in the
// effective order and the user may not remove them (spec.md §3).
type AuditRole string

const (
	AuditCreatedBy AuditRole = "CREATED_BY"
	AuditCreatedAt AuditRole = "CREATED_AT"
	AuditUpdatedBy AuditRole = "UPDATED_BY"
	AuditUpdatedAt AuditRole = "UPDATED_AT"
)

// ColumnMapping describes how one target column is populated: a direct
// copy from SourceColumn, or a DerivationExpression evaluated over
// already-fetched source values (spec.md §3, §4.7).
type ColumnMapping struct {
	SourceColumn         *string      `json:"source_column,omitempty"`
	TargetColumn         string       `json:"target_column"`
	TargetType           SemanticType `json:"target_type"`
	TargetLength         int          `json:"target_length,omitempty"` // for text-bounded
	KeyFlag              bool         `json:"key_flag"`
	KeySequence          int          `json:"key_sequence,omitempty"`
	DerivationExpression *string      `json:"derivation_expression,omitempty"`
	RequiredFlag         bool         `json:"required_flag"`
	AuditRole            *AuditRole   `json:"audit_role,omitempty"`
	ExecutionSequence    int          `json:"execution_sequence"`
}

// IsAudit reports whether this column is system-managed.
func (c ColumnMapping) IsAudit() bool { return c.AuditRole != nil }

// MappingDefinition is the read-only-to-the-executor description of one
// source-to-target data movement. Captured into an immutable in-memory
// snapshot for the duration of a run (spec.md §3).
type MappingDefinition struct {
	MappingRef          string              `json:"mapping_ref"`
	SourceConnectionRef string              `json:"source_connection_ref"`
	SourceQuery         string              `json:"source_query"`
	TargetConnectionRef string              `json:"target_connection_ref"`
	TargetSchema        string              `json:"target_schema"`
	TargetTable         string              `json:"target_table"`
	Columns             []ColumnMapping     `json:"columns"`
	LoadModeDefault     LoadMode            `json:"load_mode_default"`
	CheckpointStrategy  CheckpointStrategy  `json:"checkpoint_strategy"`
	CheckpointColumn    *string             `json:"checkpoint_column,omitempty"`
	BatchSize           int                 `json:"batch_size"`
	TruncateFlag        bool                `json:"truncate_flag"`
}

// EffectiveColumns returns Columns sorted so that audit columns always
// follow non-audit columns, each group ordered by ExecutionSequence —
// the invariant spec.md §3 states for ColumnMapping.
func (m MappingDefinition) EffectiveColumns() []ColumnMapping {
	out := make([]ColumnMapping, len(m.Columns))
	copy(out, m.Columns)

	less := func(i, j int) bool {
		ai, aj := out[i].IsAudit(), out[j].IsAudit()
		if ai != aj {
			return !ai // non-audit sorts first
		}
		return out[i].ExecutionSequence < out[j].ExecutionSequence
	}
	// insertion sort: columns lists are small (tens, not thousands)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// KeyColumns returns the columns that form the upsert key, ordered by
// KeySequence.
func (m MappingDefinition) KeyColumns() []ColumnMapping {
	var keys []ColumnMapping
	for _, c := range m.Columns {
		if c.KeyFlag {
			keys = append(keys, c)
		}
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j].KeySequence < keys[j-1].KeySequence; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
