package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/duckllm/duckllm/internal/gendata"
)

func main() {
	opts := gendata.Options{}
	cmd := &cobra.Command{
		Use:   "duckllm-gendata",
		Short: "Write a sample carbon emissions dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			written, err := gendata.Write(opts)
			if err != nil {
				return err
			}
			for _, path := range written {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "generated %d emission records\n", opts.Records)
			return nil
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&opts.Dir, "out", "o", ".", "Output directory")
	cmd.Flags().IntVarP(&opts.Records, "records", "n", 10000, "Number of emission records")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 42, "Random seed")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", gendata.FormatCSV, "Output format: csv, parquet or both")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
