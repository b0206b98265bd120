package chunkproc

import (
	"strings"
	"testing"

	"github.com/etlcore/orchestrator/internal/dialect"
	"github.com/etlcore/orchestrator/internal/domain"
)

func TestBuildSourceQueryNoneReturnsBaseQuery(t *testing.T) {
	d := dialect.NewPostgres()
	m := &domain.MappingDefinition{SourceQuery: "SELECT * FROM widgets;"}
	chunk := domain.ChunkDescriptor{Strategy: domain.ChunkStrategyNone}
	got, err := buildSourceQuery(d, m, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT * FROM widgets" {
		t.Errorf("got %q", got)
	}
}

func TestBuildSourceQueryKeyWrapsWithBoundFilter(t *testing.T) {
	d := dialect.NewPostgres()
	col := "id"
	m := &domain.MappingDefinition{SourceQuery: "SELECT * FROM widgets", CheckpointColumn: &col}
	chunk := domain.ChunkDescriptor{Strategy: domain.ChunkStrategyKey, LowerBound: "100", UpperBound: "200"}
	got, err := buildSourceQuery(d, m, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`"id" > 100`, `"id" <= 200`, "ORDER BY"} {
		if !strings.Contains(got, want) {
			t.Errorf("query %q missing %q", got, want)
		}
	}
}

func TestBuildSourceQueryKeyRequiresCheckpointColumn(t *testing.T) {
	d := dialect.NewPostgres()
	m := &domain.MappingDefinition{SourceQuery: "SELECT * FROM widgets"}
	chunk := domain.ChunkDescriptor{Strategy: domain.ChunkStrategyKey}
	if _, err := buildSourceQuery(d, m, chunk); err == nil {
		t.Error("expected error when checkpoint column is missing")
	}
}

func TestBuildSourceQueryOrdinalRendersOffsetFetch(t *testing.T) {
	d := dialect.NewPostgres()
	m := &domain.MappingDefinition{SourceQuery: "SELECT * FROM widgets ORDER BY id", BatchSize: 50}
	chunk := domain.ChunkDescriptor{Strategy: domain.ChunkStrategyOrdinal, LowerBound: "100", UpperBound: "150"}
	got, err := buildSourceQuery(d, m, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT * FROM widgets ORDER BY id OFFSET 100 ROWS FETCH NEXT 50 ROWS ONLY"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildSourceQueryOrdinalOpenEndedOmitsFetchLimit(t *testing.T) {
	d := dialect.NewPostgres()
	m := &domain.MappingDefinition{SourceQuery: "SELECT * FROM widgets ORDER BY id", BatchSize: 50}
	chunk := domain.ChunkDescriptor{Strategy: domain.ChunkStrategyOrdinal, LowerBound: "100", UpperBound: ""}
	got, err := buildSourceQuery(d, m, chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT * FROM widgets ORDER BY id OFFSET 100 ROWS"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if strings.Contains(got, "FETCH") {
		t.Errorf("open-ended chunk must not carry a FETCH limit, got %q", got)
	}
}

func TestBuildInsertPlainInsert(t *testing.T) {
	d := dialect.NewPostgres()
	m := &domain.MappingDefinition{TargetSchema: "public", TargetTable: "widgets"}
	cols := []domain.ColumnMapping{
		{TargetColumn: "id", KeyFlag: true},
		{TargetColumn: "name"},
	}
	got := buildInsert(d, m, cols, domain.LoadModeInsert)
	want := `INSERT INTO "public"."widgets" ("id", "name") VALUES ($1, $2)`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildInsertUpsertAppendsOnConflict(t *testing.T) {
	d := dialect.NewPostgres()
	m := &domain.MappingDefinition{TargetSchema: "public", TargetTable: "widgets"}
	cols := []domain.ColumnMapping{
		{TargetColumn: "id", KeyFlag: true},
		{TargetColumn: "name"},
	}
	got := buildInsert(d, m, cols, domain.LoadModeUpsert)
	if !strings.Contains(got, `ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name"`) {
		t.Errorf("got %q, missing upsert clause", got)
	}
}

func TestBuildInsertUpsertWithoutNonKeyColumnsSkipsOnConflict(t *testing.T) {
	d := dialect.NewPostgres()
	m := &domain.MappingDefinition{TargetSchema: "public", TargetTable: "widgets"}
	cols := []domain.ColumnMapping{
		{TargetColumn: "id", KeyFlag: true},
	}
	got := buildInsert(d, m, cols, domain.LoadModeUpsert)
	if strings.Contains(got, "ON CONFLICT") {
		t.Errorf("got %q, should not have upsert clause with no columns to update", got)
	}
}
