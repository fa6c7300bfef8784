package main

import (
	"fmt"
	"os"

	"github.com/microsoft/gridscan/internal/dataset"
	"github.com/spf13/cobra"
)

func newSampleCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write the sample consumption dataset",
		Long: `Write the bundled sample dataset. It shows the CSV layout the scoring
service expects: one row per meter reading with consumer_id, energy_consumed
and transformer_id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" || out == "-" {
				return dataset.WriteSample(cmd.OutOrStdout())
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			if err := dataset.WriteSample(f); err != nil {
				f.Close() //nolint:errcheck
				return fmt.Errorf("writing %s: %w", out, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}

			rows, err := dataset.LoadCSV(out)
			if err != nil {
				return err
			}
			stats := dataset.Summarize(rows)
			printer.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d rows, %d consumers, %d transformers\n",
				out, stats.Rows, stats.Consumers, stats.Transformers)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")

	return cmd
}
