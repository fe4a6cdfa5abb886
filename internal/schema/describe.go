package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/duckllm/duckllm/internal/query"
)

// Views are listed alongside tables; oids interleave both in creation order.
const listTablesSQL = `SELECT table_name FROM (
  SELECT table_name, table_oid AS oid
  FROM duckdb_tables()
  WHERE database_name = current_database()
    AND schema_name = current_schema()
    AND NOT internal
  UNION ALL
  SELECT view_name AS table_name, view_oid AS oid
  FROM duckdb_views()
  WHERE database_name = current_database()
    AND schema_name = current_schema()
    AND NOT internal
    AND NOT temporary
)
ORDER BY oid`

const listColumnsSQL = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_catalog = current_database()
  AND table_schema = current_schema()
  AND table_name = ?
ORDER BY ordinal_position`

// Describe lists every table and view in the current schema, in creation order,
// with its columns and the extras enabled in opts. A nil querier describes
// nothing.
func Describe(ctx context.Context, q Querier, opts Options) (Description, error) {
	if isNil(q) {
		return Description{}, nil
	}

	names, err := listTables(ctx, q)
	if err != nil {
		return Description{}, err
	}
	if len(names) == 0 {
		return Description{}, nil
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		table, err := describeTable(ctx, q, name, opts)
		if err != nil {
			return Description{}, err
		}
		tables = append(tables, table)
	}

	if opts.Relationships {
		for i := range tables {
			tables[i].Relationships = inferRelationships(tables[i], names)
		}
	}
	return Description{Tables: tables}, nil
}

func listTables(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

func describeTable(ctx context.Context, q Querier, name string, opts Options) (Table, error) {
	table := Table{Name: name}

	columns, err := listColumns(ctx, q, name)
	if err != nil {
		return Table{}, err
	}
	table.Columns = columns

	if opts.RowCounts {
		count, err := countRows(ctx, q, name)
		if err != nil {
			return Table{}, err
		}
		table.RowCount = &count
	}
	if opts.SampleRows > 0 {
		samples, err := sampleRows(ctx, q, name, opts.SampleRows)
		if err != nil {
			return Table{}, err
		}
		table.SampleRows = samples
	}
	return table, nil
}

func listColumns(ctx context.Context, q Querier, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, listColumnsSQL, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var column Column
		if err := rows.Scan(&column.Name, &column.Type); err != nil {
			return nil, fmt.Errorf("scan column of %q: %w", table, err)
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %q: %w", table, err)
	}
	return columns, nil
}

func countRows(ctx context.Context, q Querier, table string) (int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table))
	if err != nil {
		return 0, fmt.Errorf("count rows of %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("scan row count of %q: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("count rows of %q: %w", table, err)
	}
	return count, nil
}

func sampleRows(ctx context.Context, q Querier, table string, limit int) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), limit))
	if err != nil {
		return nil, fmt.Errorf("sample rows of %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sample columns of %q: %w", table, err)
	}

	samples := make([]string, 0, limit)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan sample row of %q: %w", table, err)
		}
		samples = append(samples, formatTuple(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows of %q: %w", table, err)
	}
	return samples, nil
}

// inferRelationships pairs every <name>_id column with a table called <name>
// or its plural, skipping the table's own key.
func inferRelationships(table Table, tableNames []string) []Relationship {
	known := make(map[string]string, len(tableNames))
	for _, name := range tableNames {
		known[strings.ToLower(name)] = name
	}

	var relationships []Relationship
	for _, column := range table.Columns {
		lower := strings.ToLower(column.Name)
		if !strings.HasSuffix(lower, "_id") || lower == "_id" {
			continue
		}
		prefix := strings.TrimSuffix(lower, "_id")
		for _, candidate := range []string{prefix, prefix + "s", prefix + "es"} {
			target, ok := known[candidate]
			if !ok || strings.EqualFold(target, table.Name) {
				continue
			}
			relationships = append(relationships, Relationship{Column: column.Name, Table: target})
			break
		}
	}
	return relationships
}

func formatTuple(values []any) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		parts = append(parts, formatLiteral(value))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatLiteral(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(typed)
	case []byte:
		return quoteString(string(typed))
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return query.FormatValue(typed)
	default:
		return quoteString(query.FormatValue(typed))
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func isNil(q Querier) bool {
	if q == nil {
		return true
	}
	if db, ok := q.(*sql.DB); ok && db == nil {
		return true
	}
	return false
}
