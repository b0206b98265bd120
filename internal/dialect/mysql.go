package dialect

import (
	"fmt"
	"strings"
)

type mysql struct{}

// NewMySQL returns a MySQL-flavored Dialect. Covers the identifier
// quoting, LIMIT/OFFSET pagination, and ON DUPLICATE KEY UPDATE upsert
// syntax spec.md §9 calls out as dialect-variant, so the Chunk Planner
// and Chunk Processor can target either engine without a branch.
func NewMySQL() Dialect { return mysql{} }

func (mysql) Name() Name { return MySQL }

func (mysql) QuoteIdentifier(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysql) Placeholder(int) string { return "?" }

func (mysql) SkipLockedClause() string { return "FOR UPDATE SKIP LOCKED" }

func (mysql) OffsetFetch(offset, limit int64) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

// OffsetOnly relies on MySQL's documented idiom for an unbounded LIMIT:
// a row count large enough it never binds in practice.
func (mysql) OffsetOnly(offset int64) string {
	return fmt.Sprintf("LIMIT 18446744073709551615 OFFSET %d", offset)
}

func (m mysql) UpsertClause(_ []string, updateColumns []string) string {
	var sets []string
	for _, c := range updateColumns {
		q := m.QuoteIdentifier(c)
		sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", q, q))
	}
	return fmt.Sprintf("ON DUPLICATE KEY UPDATE %s", strings.Join(sets, ", "))
}

func (m mysql) TruncateStatement(qualifiedTable string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", qualifiedTable)
}
