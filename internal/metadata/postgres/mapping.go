package postgres

import (
	"context"
	"errors"

	"github.com/etlcore/orchestrator/internal/dialect"
	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type mappingGateway struct {
	pool   *pgxpool.Pool
	schema string
	d      dialect.Dialect
}

func (g *mappingGateway) tbl() string    { return table(g.schema, g.d, "mapping_definitions") }
func (g *mappingGateway) colTbl() string { return table(g.schema, g.d, "column_mappings") }

func (g *mappingGateway) GetByRef(ctx context.Context, mappingRef string) (*domain.MappingDefinition, error) {
	var m domain.MappingDefinition
	var checkpointColumn *string
	err := g.pool.QueryRow(ctx, `
		SELECT mapping_ref, source_connection_ref, source_query, target_connection_ref,
		       target_schema, target_table, load_mode_default, checkpoint_strategy,
		       checkpoint_column, batch_size, truncate_flag
		FROM `+g.tbl()+`
		WHERE mapping_ref = $1`, mappingRef).Scan(
		&m.MappingRef, &m.SourceConnectionRef, &m.SourceQuery, &m.TargetConnectionRef,
		&m.TargetSchema, &m.TargetTable, &m.LoadModeDefault, &m.CheckpointStrategy,
		&checkpointColumn, &m.BatchSize, &m.TruncateFlag,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMappingNotFound
		}
		return nil, wrapErr("get mapping", err)
	}
	m.CheckpointColumn = checkpointColumn

	rows, err := g.pool.Query(ctx, `
		SELECT source_column, target_column, target_type, target_length, key_flag,
		       key_sequence, derivation_expression, required_flag, audit_role, execution_sequence
		FROM `+g.colTbl()+`
		WHERE mapping_ref = $1
		ORDER BY execution_sequence ASC`, mappingRef)
	if err != nil {
		return nil, wrapErr("get mapping: list columns", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.ColumnMapping
		var auditRole *domain.AuditRole
		if err := rows.Scan(
			&c.SourceColumn, &c.TargetColumn, &c.TargetType, &c.TargetLength, &c.KeyFlag,
			&c.KeySequence, &c.DerivationExpression, &c.RequiredFlag, &auditRole, &c.ExecutionSequence,
		); err != nil {
			return nil, wrapErr("get mapping: scan column", err)
		}
		c.AuditRole = auditRole
		m.Columns = append(m.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("get mapping: iterate columns", err)
	}

	return &m, nil
}
