// Package cli implements the duckllm command tree.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/duckllm/duckllm/internal/cache"
	"github.com/duckllm/duckllm/internal/config"
	"github.com/duckllm/duckllm/internal/history"
	"github.com/duckllm/duckllm/internal/llm"
	"github.com/duckllm/duckllm/internal/observability"
	"github.com/duckllm/duckllm/internal/storage"
	"github.com/duckllm/duckllm/internal/storage/s3"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type Options struct {
	Config config.Config
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Client replaces the OpenAI-compatible client built from Config.AI.
	Client llm.Client
	// Mirror replaces the S3 mirror built from Config.Mirror.
	Mirror storage.ObjectStore
	// History replaces the Postgres connection opened from Config.History.
	// Run does not close it.
	History *sql.DB
	// NewLineReader replaces the readline prompt used for follow-ups.
	NewLineReader func(prompt string) (LineReader, error)
}

// Run executes one command line and returns the process exit code: 0 on
// success, 1 when the command fails, 2 on usage errors.
func Run(ctx context.Context, args []string, opts Options) int {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	a := &app{opts: opts, cfg: opts.Config}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	if opts.Stdin != nil {
		root.SetIn(opts.Stdin)
	}

	runID := observability.NewRunID()
	err := root.ExecuteContext(observability.ContextWithRunID(ctx, runID))
	a.writeMetrics()
	if err == nil {
		return exitOK
	}

	var failure *failureError
	if errors.As(err, &failure) {
		_, _ = fmt.Fprintf(opts.Stderr, "error: %v\n", failure.err)
		return exitFailure
	}
	_, _ = fmt.Fprintf(opts.Stderr, "error: %v\n", err)
	_, _ = fmt.Fprintf(opts.Stderr, "Run '%s --help' for usage.\n", root.CommandPath())
	return exitUsage
}

// failureError marks an error raised after the command line was accepted.
// Everything else cobra reports is a usage error.
type failureError struct {
	err error
}

func (e *failureError) Error() string { return e.err.Error() }
func (e *failureError) Unwrap() error { return e.err }

func fail(err error) error {
	if err == nil {
		return nil
	}
	return &failureError{err: err}
}

type app struct {
	opts    Options
	cfg     config.Config
	verbose bool
	logger  *slog.Logger
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "duckllm",
		Short: "Ask questions about data files in plain language",
		Long: `duckllm loads a DuckDB database, CSV or Parquet file, asks a language model
to write SQL for your question, runs it and optionally explains the results.

CSV files are converted to Parquet once and cached under ~/.duckdb_llm/cache.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if a.verbose {
				cfg.Observability.LogLevel = slog.LevelDebug
			}
			a.logger = observability.NewLogger(cfg, a.opts.Stderr).
				With(slog.String("run_id", observability.RunIDFromContext(cmd.Context())))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log progress to stderr")

	root.AddCommand(a.queryCommand())
	root.AddCommand(a.schemaCommand())
	root.AddCommand(a.cacheCommand())
	root.AddCommand(a.historyCommand())
	return root
}

func (a *app) modelClient() (llm.Client, error) {
	if a.opts.Client != nil {
		return a.opts.Client, nil
	}
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: a.cfg.AI.BaseURL,
		APIKey:  a.cfg.AI.APIKey,
		Timeout: a.cfg.AI.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("configure model client (set OPENAI_API_KEY or DUCKLLM_AI_API_KEY): %w", err)
	}
	return client, nil
}

// resolver builds the cache resolver. A mirror that cannot be reached is
// logged and skipped; the local cache still works.
func (a *app) resolver(ctx context.Context) *cache.Resolver {
	resolver := &cache.Resolver{Dir: a.cfg.Cache.Dir, Logger: a.logger, Mirror: a.opts.Mirror}
	if resolver.Mirror != nil || !a.cfg.Mirror.Enabled() {
		return resolver
	}
	store, err := s3.New(ctx, a.cfg.Mirror)
	if err != nil {
		a.logger.WarnContext(ctx, "cache mirror disabled", slog.Any("error", err))
		return resolver
	}
	resolver.Mirror = store
	return resolver
}

// openHistory returns the history database and its closer, which is never
// nil. It returns history.ErrDisabled when no DSN is configured.
func (a *app) openHistory(ctx context.Context) (*sql.DB, func(), error) {
	if a.opts.History != nil {
		return a.opts.History, func() {}, nil
	}
	db, err := history.Open(ctx, a.cfg.History)
	if err != nil {
		return nil, func() {}, err
	}
	return db, closeDB(db), nil
}

// historyRecorder opens the history database when configured. The returned
// closer is never nil.
func (a *app) historyRecorder(ctx context.Context) (*history.Recorder, func()) {
	noop := func() {}
	if !a.cfg.History.Enabled() && a.opts.History == nil {
		return nil, noop
	}
	db, closer, err := a.openHistory(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "history disabled", slog.Any("error", err))
		return nil, noop
	}
	recorder := history.NewRecorder(db)
	if err := recorder.EnsureSchema(ctx); err != nil {
		a.logger.WarnContext(ctx, "history disabled", slog.Any("error", err))
		closer()
		return nil, noop
	}
	return recorder, closer
}

func (a *app) writeMetrics() {
	path := strings.TrimSpace(a.cfg.Observability.MetricsFile)
	if path == "" {
		return
	}
	if err := observability.WriteMetricsFile(path); err != nil {
		_, _ = fmt.Fprintf(a.opts.Stderr, "warning: %v\n", err)
	}
}

func closeDB(db *sql.DB) func() {
	return func() { _ = db.Close() }
}
