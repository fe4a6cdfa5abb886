package query

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	FormatTable    = "table"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

func ValidFormat(format string) bool {
	switch format {
	case FormatTable, FormatCSV, FormatMarkdown, "md", FormatJSON:
		return true
	default:
		return false
	}
}

// Text renders the result as a plain ASCII grid. The output depends only on
// the columns and rows, so it is safe to embed in prompts.
func (r Result) Text() string {
	if len(r.Columns) == 0 {
		return "(no columns)"
	}
	t := r.writer()
	setStyle(t, table.StyleDefault)
	return t.Render() + fmt.Sprintf("\n(%d rows)", len(r.Rows))
}

// Render writes the result to w in one of the terminal formats.
func (r Result) Render(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		return r.renderJSON(w)
	case FormatCSV:
		_, err := fmt.Fprintln(w, r.writer().RenderCSV())
		return err
	case FormatMarkdown, "md":
		_, err := fmt.Fprintln(w, r.writer().RenderMarkdown())
		return err
	default:
		if len(r.Rows) == 0 {
			_, err := fmt.Fprintln(w, "(0 rows)")
			return err
		}
		t := r.writer()
		setStyle(t, table.StyleLight)
		_, err := fmt.Fprintf(w, "%s\n(%d rows)\n", t.Render(), len(r.Rows))
		return err
	}
}

func (r Result) writer() table.Writer {
	t := table.NewWriter()
	header := make(table.Row, len(r.Columns))
	for i, col := range r.Columns {
		header[i] = col
	}
	t.AppendHeader(header)
	for _, values := range r.Rows {
		row := make(table.Row, len(values))
		for i, value := range values {
			row[i] = FormatValue(value)
		}
		t.AppendRow(row)
	}
	return t
}

// jsonResult keeps column order and duplicate column names intact, which a
// map per row cannot.
type jsonResult struct {
	Columns     []string `json:"columns"`
	ColumnTypes []string `json:"column_types,omitempty"`
	Rows        [][]any  `json:"rows"`
}

func (r Result) renderJSON(w io.Writer) error {
	out := jsonResult{
		Columns:     r.Columns,
		ColumnTypes: r.ColumnTypes,
		Rows:        make([][]any, 0, len(r.Rows)),
	}
	for _, values := range r.Rows {
		row := make([]any, len(values))
		for i, value := range values {
			row[i] = jsonValue(value)
		}
		out.Rows = append(out.Rows, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// jsonValue spells out non-finite floats, which JSON cannot carry as numbers.
func jsonValue(value any) any {
	var f float64
	switch typed := value.(type) {
	case float64:
		f = typed
	case float32:
		f = float64(typed)
	default:
		return value
	}
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return value
	}
}

// setStyle applies style but keeps header text as the engine named it.
func setStyle(t table.Writer, style table.Style) {
	t.SetStyle(style)
	t.Style().Format.Header = text.FormatDefault
}

// FormatValue renders a single cell. NULL is spelled out so it cannot be
// confused with an empty string.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(typed)
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return typed.Format("2006-01-02")
		}
		return typed.Format("2006-01-02 15:04:05")
	case string:
		return typed
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}
