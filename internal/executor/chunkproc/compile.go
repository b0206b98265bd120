package chunkproc

import (
	"fmt"

	"github.com/etlcore/orchestrator/internal/derive"
	"github.com/etlcore/orchestrator/internal/domain"
)

// CompiledMapping is a MappingDefinition with every derivation expression
// parsed once, so the chunk processor only tree-walks per row instead of
// re-parsing per chunk.
type CompiledMapping struct {
	Def         *domain.MappingDefinition
	Derivations map[string]derive.Expr // keyed by target column
}

func Compile(m *domain.MappingDefinition) (*CompiledMapping, error) {
	cm := &CompiledMapping{Def: m, Derivations: make(map[string]derive.Expr)}
	for _, col := range m.Columns {
		if col.DerivationExpression == nil || *col.DerivationExpression == "" {
			continue
		}
		expr, err := derive.Parse(*col.DerivationExpression)
		if err != nil {
			return nil, fmt.Errorf("chunkproc: compile derivation for column %q: %w", col.TargetColumn, err)
		}
		cm.Derivations[col.TargetColumn] = expr
	}
	return cm, nil
}
