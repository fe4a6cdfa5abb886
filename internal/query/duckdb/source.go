package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/duckllm/duckllm/internal/cache"
)

type Kind string

const (
	KindDatabase Kind = "database"
	KindCSV      Kind = "csv"
	KindParquet  Kind = "parquet"
)

var nonIdentChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// DetectKind classifies an input file by extension.
func DetectKind(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".duckdb", ".db":
		return KindDatabase, nil
	case ".csv", ".tsv":
		return KindCSV, nil
	case ".parquet":
		return KindParquet, nil
	default:
		return "", fmt.Errorf("unsupported input %q: expected .duckdb, .db, .csv, .tsv or .parquet", filepath.Base(path))
	}
}

// TableName derives the table a file is loaded into from its stem.
func TableName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name := strings.Trim(nonIdentChars.ReplaceAllString(stem, "_"), "_")
	if name == "" {
		return "data"
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "t_" + name
	}
	return name
}

// Source describes what Load did with an input file.
type Source struct {
	Path     string
	Kind     Kind
	Table    string
	Artifact *cache.Artifact
}

// Loader turns an input file into an open DuckDB connection. Delimited text
// goes through Cache when it is set; without a cache it is parsed directly.
type Loader struct {
	Cache  *cache.Resolver
	Logger *slog.Logger
}

func (l *Loader) Load(ctx context.Context, path string) (*sql.DB, Source, error) {
	kind, err := DetectKind(path)
	if err != nil {
		return nil, Source{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, Source{}, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return nil, Source{}, fmt.Errorf("input %q is a directory", path)
	}

	source := Source{Path: path, Kind: kind}
	if kind == KindDatabase {
		db, err := Open(ctx, path)
		if err != nil {
			return nil, Source{}, err
		}
		return db, source, nil
	}

	db, err := Open(ctx, "")
	if err != nil {
		return nil, Source{}, err
	}
	source.Table = TableName(path)
	if err := l.loadTable(ctx, db, &source); err != nil {
		_ = db.Close()
		return nil, Source{}, err
	}
	return db, source, nil
}

func (l *Loader) loadTable(ctx context.Context, db *sql.DB, source *Source) error {
	logger := l.logger().With(slog.String("input", source.Path), slog.String("table", source.Table))

	var reader string
	switch {
	case source.Kind == KindParquet:
		reader = "read_parquet(" + quoteString(source.Path) + ")"
	case l.Cache == nil:
		reader = "read_csv_auto(" + quoteString(source.Path) + ")"
	default:
		artifact, err := l.Cache.Materialize(ctx, source.Path, CSVToParquet(db))
		if err != nil {
			return fmt.Errorf("cache %q: %w", source.Path, err)
		}
		source.Artifact = &artifact
		logger.DebugContext(ctx, "columnar cache ready",
			slog.String("artifact", artifact.Path),
			slog.Bool("hit", artifact.Hit),
			slog.Bool("remote", artifact.Remote),
		)
		reader = "read_parquet(" + quoteString(artifact.Path) + ")"
	}

	stmt := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", quoteIdent(source.Table), reader)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("load table %q: %w", source.Table, err)
	}
	logger.DebugContext(ctx, "input loaded")
	return nil
}

// CSVToParquet converts delimited text to Parquet with DuckDB's own reader.
func CSVToParquet(db *sql.DB) cache.ConvertFunc {
	return func(ctx context.Context, src, dst string) error {
		stmt := fmt.Sprintf("COPY (SELECT * FROM read_csv_auto(%s)) TO %s (FORMAT PARQUET)", quoteString(src), quoteString(dst))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("copy to parquet: %w", err)
		}
		return nil
	}
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
