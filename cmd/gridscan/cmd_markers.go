package main

import (
	"encoding/json"
	"fmt"

	"github.com/microsoft/gridscan/internal/derive"
	"github.com/microsoft/gridscan/internal/models"
	"github.com/spf13/cobra"
)

func newMarkersCommand() *cobra.Command {
	var input string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "markers",
		Short: "List map markers for high-risk consumers",
		Long: `List the map markers derived from a result file.

One marker is produced per consumer with valid coordinates whose risk class is
high or critical. Duplicate consumer records keep the highest score.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := models.LoadResultFile(input)
			if err != nil {
				return err
			}

			markers := derive.Markers(result)
			center := derive.MapCenter(derive.GeoMarkers(result))
			out := cmd.OutOrStdout()

			if asJSON {
				if markers == nil {
					markers = []derive.Marker{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"center": center, "markers": markers})
			}

			fmt.Fprintf(out, "Map center: %.4f, %.4f\n", center.Lat, center.Lng)
			if len(markers) == 0 {
				fmt.Fprintln(out, "No high-risk consumers with coordinates.")
				return nil
			}
			fmt.Fprintf(out, "%-16s %-16s %-10s %-6s %s\n", "Consumer", "Transformer", "Class", "Risk", "Position")
			fmt.Fprintln(out, rule)
			for _, m := range markers {
				fmt.Fprintf(out, "%-16s %-16s %-10s %5d%% %.5f, %.5f\n",
					m.ConsumerID, m.TransformerID, m.RiskClass, m.ScorePercent, m.Position.Lat, m.Position.Lng)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Result JSON file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print markers as JSON")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func newTransformersCommand() *cobra.Command {
	var input string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "transformers",
		Short: "Show the anomaly distribution across transformers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := models.LoadResultFile(input)
			if err != nil {
				return err
			}
			chart := derive.TransformerStats(result.TransformersAtRisk)
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(chart)
			}
			printChart(out, chart)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Result JSON file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print chart data as JSON")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}
