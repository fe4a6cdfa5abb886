// Package session wires one input file, one DuckDB connection and one model
// client into the question answering pipeline.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/duckllm/duckllm/internal/cache"
	"github.com/duckllm/duckllm/internal/config"
	"github.com/duckllm/duckllm/internal/history"
	"github.com/duckllm/duckllm/internal/llm"
	"github.com/duckllm/duckllm/internal/nl2sql"
	"github.com/duckllm/duckllm/internal/observability"
	"github.com/duckllm/duckllm/internal/query"
	"github.com/duckllm/duckllm/internal/query/duckdb"
	"github.com/duckllm/duckllm/internal/schema"
)

type Options struct {
	Path   string
	Config config.Config
	Client llm.Client
	Logger *slog.Logger
	// Cache overrides the resolver built from Config.Cache. Set it to attach
	// a mirror.
	Cache *cache.Resolver
	// History is optional; recording failures are logged and ignored.
	History *history.Recorder
}

// Outcome is everything one question produced. Fields are filled as far as
// the pipeline got, so a failed Ask still reports the prompt and raw reply.
type Outcome struct {
	RunID     string
	Question  string
	Schema    string
	Prompt    string
	Raw       string
	Model     string
	SQL       string
	Reasoning string
	Result    query.Result
	Duration  time.Duration
}

type Session struct {
	db         *sql.DB
	source     duckdb.Source
	executor   *duckdb.Executor
	translator *nl2sql.Translator
	analyzer   *nl2sql.Analyzer
	schemaOpts schema.Options
	history    *history.Recorder
	logger     *slog.Logger
	lastSchema string
	asks       int
}

func Open(ctx context.Context, opts Options) (*Session, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("model client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	resolver := opts.Cache
	if resolver == nil {
		resolver = &cache.Resolver{Dir: opts.Config.Cache.Dir, Logger: logger}
	}

	loader := &duckdb.Loader{Cache: resolver, Logger: logger}
	db, source, err := loader.Load(ctx, opts.Path)
	if err != nil {
		return nil, err
	}
	logger.DebugContext(ctx, "session opened", slog.String("input", source.Path), slog.String("kind", string(source.Kind)))

	ai := opts.Config.AI
	model := strings.TrimSpace(ai.Model)
	if model == "" {
		model = config.DefaultModel
	}
	translator := nl2sql.NewTranslator(opts.Client, model, ai.Temperature)
	translator.Logger = logger
	analyzer := nl2sql.NewAnalyzer(opts.Client, model, ai.Temperature)
	analyzer.Logger = logger

	return &Session{
		db:         db,
		source:     source,
		executor:   duckdb.NewExecutor(db),
		translator: translator,
		analyzer:   analyzer,
		schemaOpts: schema.OptionsFromConfig(opts.Config.Schema),
		history:    opts.History,
		logger:     logger,
	}, nil
}

func (s *Session) Source() duckdb.Source {
	return s.source
}

func (s *Session) Describe(ctx context.Context) (schema.Description, error) {
	desc, err := schema.Describe(ctx, s.db, s.schemaOpts)
	if err != nil {
		return schema.Description{}, fmt.Errorf("describe schema: %w", err)
	}
	s.lastSchema = desc.String()
	return desc, nil
}

// Ask turns question into SQL and runs it. A response without an answer
// block fails with nl2sql.ErrNoAnswer before anything is executed.
func (s *Session) Ask(ctx context.Context, question string) (Outcome, error) {
	start := time.Now()
	outcome := Outcome{RunID: s.nextRunID(ctx), Question: strings.TrimSpace(question)}

	outcome, err := s.ask(ctx, outcome)
	outcome.Duration = time.Since(start)
	s.record(ctx, outcome, err)
	return outcome, err
}

func (s *Session) ask(ctx context.Context, outcome Outcome) (Outcome, error) {
	desc, err := s.Describe(ctx)
	if err != nil {
		return outcome, err
	}
	outcome.Schema = desc.String()

	translation, err := s.translator.Translate(ctx, outcome.Schema, outcome.Question)
	outcome.Prompt = translation.Prompt
	outcome.Raw = translation.Raw
	outcome.Model = translation.Model
	if err != nil {
		return outcome, err
	}
	outcome.SQL = translation.SQL
	outcome.Reasoning = translation.Reasoning

	result, err := s.executor.Execute(ctx, translation.SQL)
	if err != nil {
		return outcome, err
	}
	outcome.Result = result
	s.logger.DebugContext(ctx, "query executed",
		slog.Int("rows", result.RowCount()),
		slog.Duration("elapsed", result.Duration),
	)
	return outcome, nil
}

// Analyze explains result in the light of question. conv carries earlier
// follow-ups and may be nil; the caller appends the new turn.
func (s *Session) Analyze(ctx context.Context, question string, result query.Result, conv *nl2sql.Conversation) (string, error) {
	if s.lastSchema == "" {
		if _, err := s.Describe(ctx); err != nil {
			return "", err
		}
	}
	return s.analyzer.Analyze(ctx, nl2sql.AnalysisRequest{
		Question: question,
		Schema:   s.lastSchema,
		Result:   result,
		Prior:    conv.String(),
	})
}

func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Session) nextRunID(ctx context.Context) string {
	s.asks++
	runID := observability.RunIDFromContext(ctx)
	if runID == "" {
		runID = observability.NewRunID()
	}
	if s.asks > 1 {
		runID = fmt.Sprintf("%s-%d", runID, s.asks)
	}
	return runID
}

func (s *Session) record(ctx context.Context, outcome Outcome, askErr error) {
	if s.history == nil {
		return
	}
	entry := history.Entry{
		RunID:     outcome.RunID,
		InputPath: s.source.Path,
		Question:  outcome.Question,
		SQL:       outcome.SQL,
		Model:     outcome.Model,
		Status:    Status(askErr),
		RowCount:  int64(outcome.Result.RowCount()),
		Duration:  outcome.Duration,
	}
	if askErr != nil {
		entry.Error = askErr.Error()
	}
	if _, err := s.history.Record(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "history record failed", slog.Any("error", err))
	}
}

// Status classifies an Ask error for the history log.
func Status(err error) string {
	var execErr *query.ExecutionError
	switch {
	case err == nil:
		return history.StatusOK
	case errors.Is(err, nl2sql.ErrNoAnswer):
		return history.StatusExtractionError
	case errors.As(err, &execErr):
		return history.StatusExecutionError
	default:
		return history.StatusError
	}
}
