// Package duckdb runs generated SQL on an embedded DuckDB database and loads
// input files into it.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
)

const driverName = "duckdb"

// Open connects to the database file at path, or to a fresh in-memory
// database when path is empty. The pool is pinned to one connection so every
// statement sees the same in-memory catalog.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
