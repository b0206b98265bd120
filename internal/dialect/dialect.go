// Package dialect abstracts the SQL differences between source/target
// database engines behind one capability interface, per spec.md §9
// ("Polymorphism across database dialects"). The Metadata Store Gateway
// and the Chunk Processor are polymorphic over this interface; neither
// branches on a dialect tag inline.
package dialect

import "fmt"

// Name identifies a registered Dialect implementation.
type Name string

const (
	Postgres Name = "postgres"
	MySQL    Name = "mysql"
)

// Dialect captures every engine-specific rendering decision the core
// needs: identifier quoting, pagination syntax, upsert syntax, the
// skip-locked clause, and placeholder style.
type Dialect interface {
	Name() Name

	// QuoteIdentifier quotes a single identifier (schema, table, or
	// column name) per the engine's rules.
	QuoteIdentifier(ident string) string

	// Placeholder returns the positional bind-parameter marker for
	// argument position n (1-based) — "$1" for Postgres, "?" for MySQL.
	Placeholder(n int) string

	// SkipLockedClause returns the row-lock clause to append to a
	// SELECT used for claim/reclaim-style atomic dequeue.
	SkipLockedClause() string

	// OffsetFetch renders an ordinal-window pagination clause covering
	// `offset` rows then up to `limit` more, in the engine's preferred
	// syntax (OFFSET/FETCH vs LIMIT/OFFSET).
	OffsetFetch(offset, limit int64) string

	// OffsetOnly renders a pagination clause that skips `offset` rows
	// and returns every row after it, unbounded — used for the
	// open-ended ORDINAL chunk the planner emits when row-count
	// estimation isn't available, so that chunk reads to exhaustion
	// instead of stopping after one batch.
	OffsetOnly(offset int64) string

	// UpsertClause renders the engine-native "insert or update on
	// conflict" tail for an INSERT statement, given the conflict target
	// columns and the columns to update on conflict.
	UpsertClause(conflictColumns, updateColumns []string) string

	// TruncateStatement renders a TRUNCATE (or engine equivalent) for
	// the fully-qualified target table.
	TruncateStatement(qualifiedTable string) string
}

// QualifyTable renders "schema"."table", quoting each part with d.
func QualifyTable(d Dialect, schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return fmt.Sprintf("%s.%s", d.QuoteIdentifier(schema), d.QuoteIdentifier(table))
}

// ByName resolves a dialect by its registered name.
func ByName(n Name) (Dialect, error) {
	switch n {
	case Postgres, "":
		return NewPostgres(), nil
	case MySQL:
		return NewMySQL(), nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", n)
	}
}
