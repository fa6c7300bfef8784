package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	debug   bool
	journal bool
	user    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "gridscan",
		Short: "gridscan - review electricity theft scoring results",
		Long: `gridscan uploads consumption datasets to the theft scoring service and turns
its results into map markers, ranked tables, inspection worklists and reports.

It also browses past analysis runs stored in the history store, whichever
storage layout they were saved with.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.journal, "journal", false, "Record session events to the journal directory")
	cmd.PersistentFlags().StringVar(&opts.user, "user", "", "User whose history is read and written (default from .gridscan.yaml)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if opts.debug {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newAnalyzeCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newMarkersCommand())
	cmd.AddCommand(newTransformersCommand())
	cmd.AddCommand(newSampleCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSessionCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
