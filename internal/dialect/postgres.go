package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

type postgres struct{}

// NewPostgres returns the Postgres Dialect — the primary engine, used
// for both the metadata store and most mapping source/targets.
func NewPostgres() Dialect { return postgres{} }

func (postgres) Name() Name { return Postgres }

func (postgres) QuoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgres) SkipLockedClause() string { return "FOR UPDATE SKIP LOCKED" }

func (postgres) OffsetFetch(offset, limit int64) string {
	return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
}

func (postgres) OffsetOnly(offset int64) string {
	return fmt.Sprintf("OFFSET %d ROWS", offset)
}

func (p postgres) UpsertClause(conflictColumns, updateColumns []string) string {
	quoted := make([]string, len(conflictColumns))
	for i, c := range conflictColumns {
		quoted[i] = p.QuoteIdentifier(c)
	}
	var sets []string
	for _, c := range updateColumns {
		q := p.QuoteIdentifier(c)
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(quoted, ", "), strings.Join(sets, ", "))
}

func (p postgres) TruncateStatement(qualifiedTable string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", qualifiedTable)
}
