package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/duckllm/duckllm/internal/cache"
	"github.com/duckllm/duckllm/internal/history"
	"github.com/duckllm/duckllm/internal/query/duckdb"
	"github.com/duckllm/duckllm/internal/schema"
)

func (a *app) schemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema FILE",
		Short: "Print the schema description the model sees for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			loader := &duckdb.Loader{Cache: a.resolver(ctx), Logger: a.logger}
			db, _, err := loader.Load(ctx, args[0])
			if err != nil {
				return fail(err)
			}
			defer func() { _ = db.Close() }()

			desc, err := schema.Describe(ctx, db, schema.OptionsFromConfig(a.cfg.Schema))
			if err != nil {
				return fail(fmt.Errorf("describe schema: %w", err))
			}
			if desc.Empty() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "(no tables)")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), desc.String())
			return nil
		},
	}
}

func (a *app) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the Parquet conversion cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path FILE",
		Short: "Print the cache artifact path for a file and whether it exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := cache.NewResolver(a.cfg.Cache.Dir)
			path, err := resolver.ResolvePath(args[0])
			if err != nil {
				return fail(err)
			}
			state := "missing"
			if cache.IsCached(path) {
				state = "cached"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", path, state)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List cached artifacts, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := cache.NewResolver(a.cfg.Cache.Dir).List()
			if err != nil {
				return fail(err)
			}
			if len(infos) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cache is empty (%s)\n", a.cfg.Cache.Dir)
				return nil
			}
			t := table.NewWriter()
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Artifact", "Rows", "Columns", "Size", "Modified"})
			for _, info := range infos {
				rows := "?"
				if info.RowCount >= 0 {
					rows = fmt.Sprintf("%d", info.RowCount)
				}
				t.AppendRow(table.Row{
					info.Path,
					rows,
					strings.Join(info.Columns, ", "),
					humanBytes(info.Size),
					info.ModTime.Local().Format(time.DateTime),
				})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	})
	return cmd
}

func (a *app) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently asked questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, closer, err := a.historyDB(cmd)
			if err != nil {
				return err
			}
			defer closer()

			recorder := history.NewRecorder(db)
			if err := recorder.EnsureSchema(ctx); err != nil {
				return fail(err)
			}
			entries, err := recorder.List(ctx, limit)
			if err != nil {
				return fail(err)
			}

			t := table.NewWriter()
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"When", "Status", "Rows", "Input", "Question", "SQL"})
			for _, entry := range entries {
				t.AppendRow(table.Row{
					entry.CreatedAt.Local().Format(time.DateTime),
					entry.Status,
					entry.RowCount,
					entry.InputPath,
					entry.Question,
					entry.SQL,
				})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.AddCommand(a.historyMigrateCommand())
	return cmd
}

func (a *app) historyMigrateCommand() *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending history migrations, or roll back the newest with --down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if down < 0 {
				return fmt.Errorf("--down must not be negative, got %d", down)
			}
			db, closer, err := a.historyDB(cmd)
			if err != nil {
				return err
			}
			defer closer()

			migrator := history.NewMigrator(db)
			if down > 0 {
				ran, err := migrator.Down(cmd.Context(), down)
				if err != nil {
					return fail(err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", ran)
				return nil
			}
			ran, err := migrator.Up(cmd.Context())
			if err != nil {
				return fail(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", ran)
			return nil
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "Roll back this many of the newest applied migrations")
	return cmd
}

// historyDB opens the history database for the inspection commands, which
// fail outright when history is not configured.
func (a *app) historyDB(cmd *cobra.Command) (*sql.DB, func(), error) {
	db, closer, err := a.openHistory(cmd.Context())
	if errors.Is(err, history.ErrDisabled) {
		return nil, nil, fail(fmt.Errorf("%w: set DUCKLLM_HISTORY_DSN", err))
	}
	if err != nil {
		return nil, nil, fail(err)
	}
	return db, closer, nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
