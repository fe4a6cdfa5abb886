// Package schema renders the tables of a DuckDB connection as text suitable
// for a model prompt.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/duckllm/duckllm/internal/config"
)

// Querier is the read-only slice of *sql.DB the introspector needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Options struct {
	SampleRows    int
	RowCounts     bool
	Relationships bool
}

func DefaultOptions() Options {
	return Options{SampleRows: 3, RowCounts: true, Relationships: true}
}

func OptionsFromConfig(cfg config.SchemaConfig) Options {
	return Options{
		SampleRows:    cfg.SampleRows,
		RowCounts:     cfg.RowCounts,
		Relationships: cfg.Relationships,
	}
}

type Column struct {
	Name string
	Type string
}

// Relationship is a guessed foreign key: Column probably references Table.id.
// It is a naming heuristic only and is never checked against the data.
type Relationship struct {
	Column string
	Table  string
}

type Table struct {
	Name          string
	Columns       []Column
	RowCount      *int64
	SampleRows    []string
	Relationships []Relationship
}

func (t Table) String() string {
	var b strings.Builder
	b.WriteString("Table: ")
	b.WriteString(t.Name)

	columns := make([]string, 0, len(t.Columns))
	for _, column := range t.Columns {
		columns = append(columns, column.Name+" "+column.Type)
	}
	b.WriteString("\nColumns: ")
	b.WriteString(strings.Join(columns, ", "))

	if t.RowCount != nil {
		fmt.Fprintf(&b, "\nRow count: %d", *t.RowCount)
	}
	if len(t.SampleRows) > 0 {
		b.WriteString("\nSample rows:")
		for _, row := range t.SampleRows {
			b.WriteString("\n  ")
			b.WriteString(row)
		}
	}
	if len(t.Relationships) > 0 {
		hints := make([]string, 0, len(t.Relationships))
		for _, rel := range t.Relationships {
			hints = append(hints, rel.Column+" -> "+rel.Table+".id")
		}
		b.WriteString("\nRelationships: ")
		b.WriteString(strings.Join(hints, ", "))
	}
	return b.String()
}

type Description struct {
	Tables []Table
}

// String joins the table blocks with a blank line. An empty description
// renders as the empty string.
func (d Description) String() string {
	blocks := make([]string, 0, len(d.Tables))
	for _, table := range d.Tables {
		blocks = append(blocks, table.String())
	}
	return strings.Join(blocks, "\n\n")
}

func (d Description) Empty() bool {
	return len(d.Tables) == 0
}

func (d Description) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, table := range d.Tables {
		names = append(names, table.Name)
	}
	return names
}
