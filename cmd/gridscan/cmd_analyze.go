package main

import (
	"fmt"
	"path/filepath"

	"github.com/microsoft/gridscan/internal/analyze"
	"github.com/microsoft/gridscan/internal/dataset"
	"github.com/microsoft/gridscan/internal/derive"
	"github.com/microsoft/gridscan/internal/report"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	file   string
	save   bool
	export report.Format
	out    string
	gzip   bool
	all    bool
}

func newAnalyzeCommand(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Upload a consumption dataset for theft scoring",
		Long: `Upload a consumption dataset to the scoring service and show the result.

The dataset must be a CSV file with the columns consumer_id, energy_consumed
and transformer_id. The header is checked before anything is uploaded.

The scoring service URL comes from GRIDSCAN_API_URL, then api.url in
.gridscan.yaml, then http://localhost:8000.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "CSV dataset to analyze")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save the result to history")
	cmd.Flags().Var(&opts.export, "export", "Also export a report: md, html, txt or json")
	cmd.Flags().StringVar(&opts.out, "out", "", "Directory for the exported report (default export.dir)")
	cmd.Flags().BoolVar(&opts.gzip, "gzip", false, "Gzip the exported report")
	cmd.Flags().BoolVar(&opts.all, "all", false, "List every non-anomalous consumer instead of the top 10")

	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions) error {
	if opts.file == "" {
		return analyze.ErrUploadMissing
	}
	if err := dataset.RequireColumns(opts.file, dataset.RequiredColumns...); err != nil {
		return err
	}

	a, err := loadApp(root)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	sess, err := a.session()
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	tok := sess.Begin()
	name := filepath.Base(opts.file)
	a.logger.Info("analyzing dataset", "file", name)
	result, err := a.analyzer().AnalyzeFile(ctx, opts.file)
	if err != nil {
		sess.RecordError("analyze", err)
		return err
	}
	if err := sess.Apply(tok, name, result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSummary(out, name, result)
	c := derive.Classify(result)
	fmt.Fprintln(out)
	printAnomalies(out, c.Anomalies, sess.Statuses())
	fmt.Fprintln(out)
	limit := 10
	if opts.all {
		limit = 0
	}
	printRanked(out, c.Normal, limit)

	if opts.save {
		arch, err := a.archiver()
		if err != nil {
			return err
		}
		rec, err := arch.Archive(ctx, a.userID(), name, result)
		if err != nil {
			sess.RecordError("archive", err)
			return fmt.Errorf("saving to history: %w", err)
		}
		fmt.Fprintf(out, "\nSaved to history as %s\n", rec.ID)
	}

	if opts.export != "" {
		dir := opts.out
		if dir == "" {
			dir = a.cfg.Resolve(a.cfg.Export.Dir)
		}
		exp := &report.Exporter{Format: opts.export, Gzip: opts.gzip, Logger: a.logger}
		path, err := exp.WriteFile(dir, result, sess.Statuses())
		if err != nil {
			sess.RecordError("export", err)
			return err
		}
		sess.RecordExport(path, string(opts.export))
		fmt.Fprintf(out, "Report written to %s\n", path)
	}
	return nil
}
