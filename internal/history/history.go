// Package history keeps an optional audit log of questions, generated SQL and
// outcomes in Postgres.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/duckllm/duckllm/internal/config"
)

var ErrDisabled = errors.New("history is not configured")

const (
	StatusOK              = "ok"
	StatusExtractionError = "extraction_error"
	StatusExecutionError  = "execution_error"
	StatusError           = "error"
)

type Entry struct {
	RunID     string
	InputPath string
	Question  string
	SQL       string
	Model     string
	Status    string
	RowCount  int64
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

func Open(ctx context.Context, cfg config.HistoryConfig) (*sql.DB, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	db, err := sql.Open("pgx", strings.TrimSpace(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	return db, nil
}

type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// EnsureSchema applies any pending history migrations.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := NewMigrator(r.db).Up(ctx); err != nil {
		return fmt.Errorf("migrate history schema: %w", err)
	}
	return nil
}

func (r *Recorder) Record(ctx context.Context, entry Entry) (Entry, error) {
	if strings.TrimSpace(entry.RunID) == "" {
		return Entry{}, fmt.Errorf("run id is required")
	}
	if entry.Status == "" {
		entry.Status = StatusOK
	}

	err := r.db.QueryRowContext(ctx, `
INSERT INTO duckllm_run (run_id, input_path, question, generated_sql, model, status, row_count, error_message, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at`,
		entry.RunID,
		entry.InputPath,
		entry.Question,
		entry.SQL,
		entry.Model,
		entry.Status,
		entry.RowCount,
		entry.Error,
		entry.Duration.Milliseconds(),
	).Scan(&entry.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("insert history entry: %w", err)
	}
	return entry, nil
}

// List returns the most recent entries first.
func (r *Recorder) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT run_id, input_path, question, generated_sql, model, status, row_count, error_message, duration_ms, created_at
FROM duckllm_run
ORDER BY created_at DESC, run_id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		var durationMs int64
		if err := rows.Scan(
			&entry.RunID,
			&entry.InputPath,
			&entry.Question,
			&entry.SQL,
			&entry.Model,
			&entry.Status,
			&entry.RowCount,
			&entry.Error,
			&durationMs,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}
