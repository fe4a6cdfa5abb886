package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/duckllm/duckllm/internal/config"
	"github.com/duckllm/duckllm/internal/history"
	"github.com/duckllm/duckllm/internal/llm/llmtest"
	"github.com/duckllm/duckllm/internal/nl2sql"
	"github.com/duckllm/duckllm/internal/observability"
	"github.com/duckllm/duckllm/internal/query"
	"github.com/duckllm/duckllm/internal/query/duckdb"
)

func TestAskExecutesExtractedSQL(t *testing.T) {
	client := llmtest.NewScriptedClient("<reasoning>Count the rows of sales.</reasoning><answer>SELECT COUNT(*) FROM sales;</answer>")
	sess := openSession(t, salesDatabase(t), client, testConfig(t))

	outcome, err := sess.Ask(context.Background(), "How many sales are there?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if outcome.SQL != "SELECT COUNT(*) FROM sales;" {
		t.Fatalf("SQL = %q", outcome.SQL)
	}
	if outcome.Reasoning != "Count the rows of sales." {
		t.Fatalf("Reasoning = %q", outcome.Reasoning)
	}
	if len(outcome.Result.Rows) != 1 || outcome.Result.Rows[0][0] != int64(2) {
		t.Fatalf("rows = %#v", outcome.Result.Rows)
	}
	if !strings.Contains(outcome.Schema, "Table: sales\nColumns: id INTEGER, amount DOUBLE") {
		t.Fatalf("Schema = %q", outcome.Schema)
	}
	if !strings.Contains(client.LastPrompt(), outcome.Schema) {
		t.Fatalf("prompt missing schema:\n%s", client.LastPrompt())
	}
}

func TestAskWithoutAnswerBlockExecutesNothing(t *testing.T) {
	client := llmtest.NewScriptedClient("CREATE TABLE marker AS SELECT 1")
	sess := openSession(t, salesDatabase(t), client, testConfig(t))

	outcome, err := sess.Ask(context.Background(), "Make a marker table")
	if !errors.Is(err, nl2sql.ErrNoAnswer) {
		t.Fatalf("Ask() error = %v, want ErrNoAnswer", err)
	}
	if outcome.Raw != "CREATE TABLE marker AS SELECT 1" || outcome.SQL != "" {
		t.Fatalf("outcome = %+v", outcome)
	}

	desc, err := sess.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if names := strings.Join(desc.TableNames(), ","); names != "sales" {
		t.Fatalf("tables = %q, statement must not run", names)
	}
}

func TestAskSurfacesEngineDiagnostic(t *testing.T) {
	client := llmtest.NewScriptedClient("<answer>SELECT total FROM nowhere</answer>")
	sess := openSession(t, salesDatabase(t), client, testConfig(t))

	outcome, err := sess.Ask(context.Background(), "What is the total?")
	var execErr *query.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Ask() error = %v, want ExecutionError", err)
	}
	if !strings.Contains(err.Error(), "nowhere") {
		t.Fatalf("Error() = %q", err.Error())
	}
	if outcome.SQL != "SELECT total FROM nowhere" {
		t.Fatalf("SQL = %q", outcome.SQL)
	}
	if got := Status(err); got != history.StatusExecutionError {
		t.Fatalf("Status() = %q", got)
	}
}

func TestCSVIsConvertedOnceAcrossSessions(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(src, []byte("id,amount\n1,10.5\n2,4.5\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	run := func() (Outcome, *Session) {
		client := llmtest.NewScriptedClient("<answer>SELECT id, amount FROM sales ORDER BY id</answer>")
		sess := openSession(t, src, client, cfg)
		outcome, err := sess.Ask(context.Background(), "List sales")
		if err != nil {
			t.Fatalf("Ask() error = %v", err)
		}
		return outcome, sess
	}

	first, firstSess := run()
	second, secondSess := run()

	if firstSess.Source().Artifact == nil || firstSess.Source().Artifact.Hit {
		t.Fatalf("first artifact = %+v, want conversion", firstSess.Source().Artifact)
	}
	if secondSess.Source().Artifact == nil || !secondSess.Source().Artifact.Hit {
		t.Fatalf("second artifact = %+v, want cache hit", secondSess.Source().Artifact)
	}
	if first.Result.Text() != second.Result.Text() {
		t.Fatalf("results differ:\n%s\n---\n%s", first.Result.Text(), second.Result.Text())
	}
}

func TestFollowUpContextOnlyGrows(t *testing.T) {
	client := llmtest.NewScriptedClient(
		"<answer>SELECT SUM(amount) AS total FROM sales</answer>",
		"The total is 15.",
		"It is modest.",
		"Two sales make it up.",
	)
	sess := openSession(t, salesDatabase(t), client, testConfig(t))
	ctx := context.Background()

	outcome, err := sess.Ask(ctx, "What is the total?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	var conv nl2sql.Conversation
	var priors []string
	for _, question := range []string{"What is the total?", "Is that large?", "How many sales?"} {
		priors = append(priors, conv.String())
		answer, err := sess.Analyze(ctx, question, outcome.Result, &conv)
		if err != nil {
			t.Fatalf("Analyze(%q) error = %v", question, err)
		}
		conv.Append(question, answer)
	}

	for i := 1; i < len(priors); i++ {
		if !strings.HasPrefix(priors[i], priors[i-1]) || len(priors[i]) <= len(priors[i-1]) {
			t.Fatalf("context %d is not a strict extension of %d:\n%q\n%q", i, i-1, priors[i-1], priors[i])
		}
	}
	last := client.LastPrompt()
	if !strings.Contains(last, "Q: Is that large?\nA: It is modest.") {
		t.Fatalf("last prompt missing prior turn:\n%s", last)
	}
	if !strings.Contains(last, outcome.Result.Text()) {
		t.Fatalf("last prompt missing results:\n%s", last)
	}
}

func TestAskRecordsHistory(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO duckllm_run")).
		WithArgs("run-42", sqlmock.AnyArg(), "How many?", "SELECT 1", "gpt-4", history.StatusOK, int64(1), "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))

	client := llmtest.NewScriptedClient("<answer>SELECT 1</answer>")
	sess, err := Open(context.Background(), Options{
		Path:    salesDatabase(t),
		Config:  testConfig(t),
		Client:  client,
		History: history.NewRecorder(db),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })

	ctx := observability.ContextWithRunID(context.Background(), "run-42")
	if _, err := sess.Ask(ctx, "How many?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestOpenValidatesOptions(t *testing.T) {
	if _, err := Open(context.Background(), Options{Client: llmtest.NewScriptedClient()}); err == nil {
		t.Fatal("expected error for missing path")
	}
	if _, err := Open(context.Background(), Options{Path: "x.csv"}); err == nil {
		t.Fatal("expected error for missing client")
	}
}

func TestStatus(t *testing.T) {
	cases := map[string]error{
		history.StatusOK:              nil,
		history.StatusExtractionError: &nl2sql.ExtractionError{Response: "x"},
		history.StatusExecutionError:  &query.ExecutionError{SQL: "x", Err: errors.New("boom")},
		history.StatusError:           errors.New("network"),
	}
	for want, err := range cases {
		if got := Status(err); got != want {
			t.Fatalf("Status(%v) = %q, want %q", err, got, want)
		}
	}
}

func openSession(t *testing.T, path string, client *llmtest.ScriptedClient, cfg config.Config) *Session {
	t.Helper()
	sess, err := Open(context.Background(), Options{Path: path, Config: cfg, Client: client})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func salesDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.duckdb")
	db, err := duckdb.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	for _, stmt := range []string{
		`CREATE TABLE sales (id INTEGER, amount DOUBLE)`,
		`INSERT INTO sales VALUES (1, 10.5), (2, 4.5)`,
	} {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("ExecContext(%q) error = %v", stmt, err)
		}
	}
	return path
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("duckllm", func(key string) (string, bool) {
		if key == "DUCKLLM_CACHE_DIR" {
			return filepath.Join(t.TempDir(), "cache"), true
		}
		return "", false
	})
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}
