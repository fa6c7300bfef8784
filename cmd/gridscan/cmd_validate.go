package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/microsoft/gridscan/internal/models"
	"github.com/microsoft/gridscan/internal/projectconfig"
	"github.com/microsoft/gridscan/internal/validation"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	var configPath string
	var checkConfig bool

	cmd := &cobra.Command{
		Use:   "validate [result.json]",
		Short: "Validate a result document or the project config",
		Long: `Validate a scoring result document against the result schema.

Only structure is checked: the summary and results keys, array shapes and
string consumer ids. Numeric fields may be strings or malformed; those are
treated as absent when the result is displayed.

With --config, validate .gridscan.yaml instead (found by walking up from the
working directory unless a path is given).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				path     string
				errs     []string
				warnings []string
				err      error
			)
			switch {
			case checkConfig || configPath != "":
				path = configPath
				if path == "" {
					if path, err = projectconfig.Find("."); err != nil {
						return fmt.Errorf("finding %s: %w", projectconfig.FileName, err)
					}
				}
				errs, err = validation.ValidateConfigFile(path)
			case len(args) == 1:
				path = args[0]
				errs, err = validation.ValidateResultFile(path)
				if err == nil && len(errs) == 0 {
					warnings = resultWarnings(path)
				}
			default:
				return errors.New("a result file or --config is required")
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(errs) == 0 {
				fmt.Fprintf(out, "✓ %s is valid\n", path)
				for _, w := range warnings {
					fmt.Fprintf(out, "  ! %s\n", w)
				}
				return nil
			}
			fmt.Fprintf(out, "✗ %s\n", path)
			for _, e := range errs {
				fmt.Fprintf(out, "  - %s\n", e)
			}
			return &ValidationFailedError{Path: path, Errors: errs}
		},
	}

	cmd.Flags().BoolVar(&checkConfig, "config", false, "Validate the project config instead of a result")
	cmd.Flags().StringVar(&configPath, "config-file", "", "Project config file to validate")

	return cmd
}

// resultWarnings lists records that will display with absent values.
func resultWarnings(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	result, err := models.ParseResult(data)
	if err != nil {
		return nil
	}
	return validation.Warnings(result)
}
