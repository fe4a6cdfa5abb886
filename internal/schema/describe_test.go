package schema

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	_ "github.com/marcboeker/go-duckdb/v2"
)

func TestDescribeNilQuerier(t *testing.T) {
	desc, err := Describe(context.Background(), nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if desc.String() != "" {
		t.Fatalf("String() = %q, want empty", desc.String())
	}

	var db *sql.DB
	desc, err = Describe(context.Background(), db, DefaultOptions())
	if err != nil {
		t.Fatalf("Describe(nil *sql.DB) error = %v", err)
	}
	if !desc.Empty() {
		t.Fatalf("Describe(nil *sql.DB) = %+v", desc)
	}
}

func TestDescribeNoTables(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(listTablesSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}))

	desc, err := Describe(context.Background(), db, DefaultOptions())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if desc.String() != "" {
		t.Fatalf("String() = %q, want empty", desc.String())
	}
	assertSQLMock(t, mock)
}

func TestDescribeRendersRelationshipsInCreationOrder(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(listTablesSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("customers").AddRow("orders"))
	mock.ExpectQuery(regexp.QuoteMeta(listColumnsSQL)).
		WithArgs("customers").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "INTEGER").
			AddRow("name", "VARCHAR"))
	mock.ExpectQuery(regexp.QuoteMeta(listColumnsSQL)).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "INTEGER").
			AddRow("customer_id", "INTEGER").
			AddRow("warehouse_id", "INTEGER"))

	desc, err := Describe(context.Background(), db, Options{Relationships: true})
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}

	want := "Table: customers\n" +
		"Columns: id INTEGER, name VARCHAR\n\n" +
		"Table: orders\n" +
		"Columns: id INTEGER, customer_id INTEGER, warehouse_id INTEGER\n" +
		"Relationships: customer_id -> customers.id"
	if got := desc.String(); got != want {
		t.Fatalf("String() =\n%s\nwant\n%s", got, want)
	}
	assertSQLMock(t, mock)
}

func TestDescribeSampleRowsAndCounts(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(listTablesSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("people"))
	mock.ExpectQuery(regexp.QuoteMeta(listColumnsSQL)).
		WithArgs("people").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "BIGINT").
			AddRow("name", "VARCHAR"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "people"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count_star()"}).AddRow(int64(5)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "people" LIMIT 2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "O'Brien").
			AddRow(int64(2), nil))

	desc, err := Describe(context.Background(), db, Options{SampleRows: 2, RowCounts: true})
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}

	want := "Table: people\n" +
		"Columns: id BIGINT, name VARCHAR\n" +
		"Row count: 5\n" +
		"Sample rows:\n" +
		"  (1, 'O''Brien')\n" +
		"  (2, NULL)"
	if got := desc.String(); got != want {
		t.Fatalf("String() =\n%s\nwant\n%s", got, want)
	}
	assertSQLMock(t, mock)
}

func TestDescribePropagatesQueryErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	boom := errors.New("connection lost")
	mock.ExpectQuery(regexp.QuoteMeta(listTablesSQL)).WillReturnError(boom)

	if _, err := Describe(context.Background(), db, DefaultOptions()); !errors.Is(err, boom) {
		t.Fatalf("Describe() error = %v, want %v", err, boom)
	}
	assertSQLMock(t, mock)
}

func TestDescribeAgainstDuckDB(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE sales (id INTEGER, amount DOUBLE)`,
		`INSERT INTO sales VALUES (1, 10.5), (2, NULL)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("ExecContext(%q) error = %v", stmt, err)
		}
	}

	desc, err := Describe(ctx, db, DefaultOptions())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	want := "Table: sales\n" +
		"Columns: id INTEGER, amount DOUBLE\n" +
		"Row count: 2\n" +
		"Sample rows:\n" +
		"  (1, 10.5)\n" +
		"  (2, NULL)"
	if got := desc.String(); got != want {
		t.Fatalf("String() =\n%s\nwant\n%s", got, want)
	}
}

func TestDescribeIncludesViews(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE sales (id INTEGER, amount DOUBLE)`,
		`CREATE VIEW big_sales AS SELECT id, amount FROM sales WHERE amount > 100`,
		`CREATE TABLE refunds (sale_id INTEGER)`,
		`INSERT INTO sales VALUES (1, 10.5), (2, 250.0)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("ExecContext(%q) error = %v", stmt, err)
		}
	}

	desc, err := Describe(ctx, db, Options{RowCounts: true})
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if got := strings.Join(desc.TableNames(), ","); got != "sales,big_sales,refunds" {
		t.Fatalf("TableNames() = %q", got)
	}
	want := "Table: big_sales\n" +
		"Columns: id INTEGER, amount DOUBLE\n" +
		"Row count: 1"
	if got := desc.String(); !strings.Contains(got, want) {
		t.Fatalf("String() =\n%s\nmissing\n%s", got, want)
	}
}

func TestInferRelationshipsSkipsOwnKeyAndUnknownTables(t *testing.T) {
	table := Table{
		Name: "boxes",
		Columns: []Column{
			{Name: "box_id", Type: "INTEGER"},
			{Name: "parent_id", Type: "INTEGER"},
			{Name: "order_id", Type: "INTEGER"},
		},
	}
	got := inferRelationships(table, []string{"boxes", "orders"})
	if len(got) != 1 || got[0] != (Relationship{Column: "order_id", Table: "orders"}) {
		t.Fatalf("inferRelationships() = %+v", got)
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
