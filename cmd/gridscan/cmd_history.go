package main

import (
	"encoding/json"
	"fmt"

	"github.com/microsoft/gridscan/internal/derive"
	"github.com/microsoft/gridscan/internal/models"
	"github.com/spf13/cobra"
)

func newHistoryCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse past analysis runs",
		Long: `Browse past analysis runs saved in the history store.

Records written by every version of the dashboard are readable: current
records point at a stored payload, older ones carry the result inline or in
a detail record.`,
	}

	cmd.AddCommand(newHistoryListCommand(root))
	cmd.AddCommand(newHistoryShowCommand(root))

	return cmd
}

func newHistoryListCommand(root *rootOptions) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			r, err := a.resolver()
			if err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			records, err := r.List(ctx, a.userID())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No history found.")
				return nil
			}

			if !verify {
				fmt.Fprintf(out, "%-38s %-30s %-20s %s\n", "ID", "File", "Saved", "Layout")
				fmt.Fprintln(out, rule)
				for _, rec := range records {
					fmt.Fprintf(out, "%-38s %-30s %-20s %s\n",
						rec.ID, rec.DisplayName(), savedAt(rec), rec.Schema())
				}
				return nil
			}

			fmt.Fprintf(out, "%-38s %-30s %-14s %s\n", "ID", "File", "Layout", "Check")
			fmt.Fprintln(out, rule)
			failed := 0
			for _, v := range r.Verify(ctx, records) {
				status := "ok"
				if v.Err != nil {
					failed++
					status = v.Err.Error()
				}
				fmt.Fprintf(out, "%-38s %-30s %-14s %s\n", v.Record.ID, v.Record.DisplayName(), v.Schema, status)
			}
			if failed > 0 {
				printer.Fprintf(out, "\n%d of %d record(s) could not be loaded\n", failed, len(records))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Load every listed record and report failures")

	return cmd
}

func newHistoryShowCommand(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a past analysis run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			result, rec, err := loadHistoryResult(cmd, a, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printSummary(out, fmt.Sprintf("%s (%s)", rec.DisplayName(), savedAt(rec)), result)
			fmt.Fprintln(out)
			printAnomalies(out, derive.Classify(result).Anomalies, nil)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored result as JSON")

	return cmd
}

// loadHistoryResult resolves the user's record with id.
func loadHistoryResult(cmd *cobra.Command, a *app, id string) (*models.AnalysisResult, models.HistoryRecord, error) {
	r, err := a.resolver()
	if err != nil {
		return nil, models.HistoryRecord{}, err
	}
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	rec, err := r.Find(ctx, a.userID(), id)
	if err != nil {
		return nil, rec, err
	}
	result, err := r.Resolve(ctx, rec)
	if err != nil {
		return nil, rec, err
	}
	return result, rec, nil
}

func savedAt(rec models.HistoryRecord) string {
	if rec.Timestamp == nil {
		return "unknown"
	}
	return rec.Timestamp.Time().Local().Format("2006-01-02 15:04:05")
}
