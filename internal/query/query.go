package query

import (
	"context"
	"fmt"
	"time"
)

// Result is a fully materialized query result. Columns, ColumnTypes and each
// row share the same order, which is the order the engine returned.
type Result struct {
	Columns     []string
	ColumnTypes []string
	Rows        [][]any
	Duration    time.Duration
}

func (r Result) RowCount() int {
	return len(r.Rows)
}

type Executor interface {
	Execute(ctx context.Context, sqlText string) (Result, error)
}

// ExecutionError carries the engine diagnostic for a statement that failed.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute query: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
