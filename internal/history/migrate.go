package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTable = "duckllm_schema_migrations"

var migrationName = regexp.MustCompile(`^([0-9]+)_.+\.(up|down)\.sql$`)

type migration struct {
	Version int64
	Up      string
	Down    string
}

// Migrator applies the versioned history schema. Each step runs in its own
// transaction together with its bookkeeping row.
type Migrator struct {
	db   *sql.DB
	fsys fs.FS
}

func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db, fsys: migrationFS}
}

// Up applies pending migrations in version order and reports how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	items, err := loadMigrations(m.fsys)
	if err != nil {
		return 0, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	done := make(map[int64]bool, len(applied))
	for _, version := range applied {
		done[version] = true
	}
	ran := 0
	for _, item := range items {
		if done[item.Version] {
			continue
		}
		if err := m.step(ctx, item.Up, `INSERT INTO `+migrationTable+` (version) VALUES ($1)`, item.Version); err != nil {
			return ran, fmt.Errorf("apply migration %d: %w", item.Version, err)
		}
		ran++
	}
	return ran, nil
}

// Down rolls back the newest steps applied migrations.
func (m *Migrator) Down(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	items, err := loadMigrations(m.fsys)
	if err != nil {
		return 0, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	byVersion := make(map[int64]migration, len(items))
	for _, item := range items {
		byVersion[item.Version] = item
	}
	ran := 0
	for i := len(applied) - 1; i >= 0 && ran < steps; i-- {
		item, ok := byVersion[applied[i]]
		if !ok {
			return ran, fmt.Errorf("applied migration %d has no source", applied[i])
		}
		if err := m.step(ctx, item.Down, `DELETE FROM `+migrationTable+` WHERE version = $1`, item.Version); err != nil {
			return ran, fmt.Errorf("roll back migration %d: %w", item.Version, err)
		}
		ran++
	}
	return ran, nil
}

func (m *Migrator) step(ctx context.Context, script, mark string, version int64) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, mark, version); err != nil {
		return err
	}
	return tx.Commit()
}

// applied ensures the bookkeeping table and returns applied versions in
// ascending order.
func (m *Migrator) applied(ctx context.Context) ([]int64, error) {
	if _, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
  version BIGINT PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `SELECT version FROM `+migrationTable+` ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := map[int64]*migration{}
	for _, entry := range entries {
		match := migrationName.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		version, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", entry.Name(), err)
		}
		body, err := fs.ReadFile(fsys, path.Join("migrations", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		item, ok := byVersion[version]
		if !ok {
			item = &migration{Version: version}
			byVersion[version] = item
		}
		if match[2] == "up" {
			item.Up = string(body)
		} else {
			item.Down = string(body)
		}
	}

	items := make([]migration, 0, len(byVersion))
	for _, item := range byVersion {
		if strings.TrimSpace(item.Up) == "" || strings.TrimSpace(item.Down) == "" {
			return nil, fmt.Errorf("migration %d needs both up and down scripts", item.Version)
		}
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Version < items[j].Version })
	return items, nil
}
