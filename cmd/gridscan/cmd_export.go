package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/microsoft/gridscan/internal/models"
	"github.com/microsoft/gridscan/internal/report"
	"github.com/microsoft/gridscan/internal/wizard"
	"github.com/spf13/cobra"
)

type exportOptions struct {
	input   string
	history string
	format  report.Format
	out     string
	gzip    bool
	inspect bool
	stdout  bool
}

func newExportCommand(root *rootOptions) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an electricity theft report",
		Long: `Export a report for a result file or a past run.

The report holds the summary statistics, the detected anomalies with their
inspection status, and the consumers classified exactly "normal" on a new
page. Use --inspect to set inspection statuses interactively first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Result JSON file to export")
	cmd.Flags().StringVar(&opts.history, "history", "", "History record id to export")
	cmd.Flags().VarP(&opts.format, "format", "f", "Report format: md, html, txt or json (default export.format)")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output directory (default export.dir)")
	cmd.Flags().BoolVar(&opts.gzip, "gzip", false, "Gzip the report")
	cmd.Flags().BoolVar(&opts.inspect, "inspect", false, "Prompt for the inspection status of every anomaly")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Write the report to stdout instead of a file")
	cmd.MarkFlagsMutuallyExclusive("input", "history")
	cmd.MarkFlagsOneRequired("input", "history")

	return cmd
}

func runExport(cmd *cobra.Command, root *rootOptions, opts *exportOptions) error {
	a, err := loadApp(root)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	format := opts.format
	if format == "" {
		if err := format.Set(a.cfg.Export.Format); err != nil {
			return fmt.Errorf("export.format in %s: %w", a.cfg.Path, err)
		}
	}

	sess, err := a.session()
	if err != nil {
		return err
	}

	tok := sess.Begin()
	var (
		result *models.AnalysisResult
		source string
	)
	if opts.input != "" {
		result, err = models.LoadResultFile(opts.input)
		source = filepath.Base(opts.input)
	} else {
		var rec models.HistoryRecord
		result, rec, err = loadHistoryResult(cmd, a, opts.history)
		source = rec.DisplayName()
	}
	if err != nil {
		sess.RecordError("export", err)
		return err
	}
	if err := sess.Apply(tok, source, result); err != nil {
		return err
	}

	if opts.inspect {
		choices := wizard.NewChoices(result.Anomalies, sess.Statuses())
		if err := wizard.RunStatusWizard(cmd.InOrStdin(), cmd.ErrOrStderr(), choices); err != nil {
			return err
		}
		if err := wizard.Apply(sess, choices); err != nil {
			return err
		}
	}

	exp := &report.Exporter{Format: format, Gzip: opts.gzip, Logger: a.logger}
	if opts.stdout {
		if opts.gzip {
			return errors.New("--gzip cannot be combined with --stdout")
		}
		if err := exp.Export(cmd.OutOrStdout(), result, sess.Statuses()); err != nil {
			sess.RecordError("export", err)
			return err
		}
		sess.RecordExport("-", string(format))
		return nil
	}

	dir := opts.out
	if dir == "" {
		dir = a.cfg.Resolve(a.cfg.Export.Dir)
	}
	path, err := exp.WriteFile(dir, result, sess.Statuses())
	if err != nil {
		sess.RecordError("export", err)
		return err
	}
	sess.RecordExport(path, string(format))
	fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
	return nil
}
