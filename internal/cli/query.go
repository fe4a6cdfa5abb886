package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/duckllm/duckllm/internal/nl2sql"
	"github.com/duckllm/duckllm/internal/query"
	"github.com/duckllm/duckllm/internal/session"
)

type queryOptions struct {
	analyze     bool
	interactive bool
	format      string
}

func (a *app) queryCommand() *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query FILE QUESTION",
		Short: "Answer a question about a data file with generated SQL",
		Example: `  duckllm query sales.csv "What are the top 5 regions by revenue?"
  duckllm query shop.duckdb "How many orders per month?" --analyze
  duckllm query emissions.parquet "Which facility emits the most?" -i`,
		Args: cobra.ExactArgs(2),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if !query.ValidFormat(opts.format) {
				return fmt.Errorf("invalid --format %q: use table, csv, markdown or json", opts.format)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(a.runQuery(cmd, args[0], args[1], opts))
		},
	}
	cmd.Flags().BoolVarP(&opts.analyze, "analyze", "a", false, "Ask the model to explain the results")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Ask follow-up questions about the results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", query.FormatTable, "Result format: table, csv, markdown, json")
	return cmd
}

func (a *app) runQuery(cmd *cobra.Command, path, question string, opts *queryOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	client, err := a.modelClient()
	if err != nil {
		return err
	}
	recorder, closeHistory := a.historyRecorder(ctx)
	defer closeHistory()

	sess, err := session.Open(ctx, session.Options{
		Path:    path,
		Config:  a.cfg,
		Client:  client,
		Logger:  a.logger,
		Cache:   a.resolver(ctx),
		History: recorder,
	})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	outcome, err := sess.Ask(ctx, question)
	if a.verbose && outcome.Reasoning != "" {
		_, _ = fmt.Fprintf(errOut, "Reasoning:\n%s\n\n", outcome.Reasoning)
	}
	if err != nil {
		if errors.Is(err, nl2sql.ErrNoAnswer) {
			_, _ = fmt.Fprintf(errOut, "Model response:\n%s\n\n", strings.TrimSpace(outcome.Raw))
		}
		if outcome.SQL != "" {
			_, _ = fmt.Fprintf(errOut, "Generated SQL:\n%s\n\n", outcome.SQL)
		}
		return err
	}

	_, _ = fmt.Fprintf(out, "Generated SQL:\n%s\n\n", outcome.SQL)
	_, _ = fmt.Fprintln(out, "Results:")
	if err := outcome.Result.Render(out, opts.format); err != nil {
		return fmt.Errorf("render results: %w", err)
	}

	conv := &nl2sql.Conversation{}
	if opts.analyze {
		analysis, err := sess.Analyze(ctx, question, outcome.Result, nil)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "\nAnalysis:\n%s\n", analysis)
		conv.Append(question, analysis)
	}

	if opts.interactive {
		return a.followUps(cmd, sess, outcome.Result, conv)
	}
	return nil
}

func printBanner(w io.Writer) {
	_, _ = fmt.Fprintln(w, "\nAsk follow-up questions about these results. Type 'exit' or press Ctrl-D to finish.")
}
