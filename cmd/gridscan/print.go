package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/microsoft/gridscan/internal/derive"
	"github.com/microsoft/gridscan/internal/inspection"
	"github.com/microsoft/gridscan/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

const rule = "─────────────────────────────────────────────────────────────────"

// printSummary writes the headline metrics of a result.
func printSummary(w io.Writer, source string, r *models.AnalysisResult) {
	s := r.Summary
	if source != "" {
		fmt.Fprintf(w, "Result: %s\n", source)
	}
	printer.Fprintf(w, "Grid Health:        %v%%\n", s.GridHealthScore)
	printer.Fprintf(w, "Consumers Scored:   %d\n", len(r.Results))
	printer.Fprintf(w, "Critical Cases:     %d\n", s.CriticalCases)
	printer.Fprintf(w, "Anomalies Detected: %d\n", s.AnomaliesDetected)
	fmt.Fprintf(w, "Est. Revenue Loss:  Rs. %s\n", s.TotalLossCalculated.Plain())
}

// printAnomalies writes the anomaly table with inspection statuses.
func printAnomalies(w io.Writer, anomalies []models.ConsumerResult, statuses inspection.Snapshot) {
	if len(anomalies) == 0 {
		fmt.Fprintln(w, "No anomalies detected.")
		return
	}
	fmt.Fprintf(w, "%-16s %-16s %-6s %-10s %s\n", "Consumer", "Transformer", "Risk", "Class", "Status")
	fmt.Fprintln(w, rule)
	for _, a := range anomalies {
		fmt.Fprintf(w, "%-16s %-16s %5d%% %-10s %s\n",
			a.ConsumerID, a.TransformerID, derive.ScorePercent(a.AggregateRiskScore), a.RiskClass, statuses.Label(a.ConsumerID))
	}
}

// printRanked writes the score-ranked table of non-anomalous consumers.
func printRanked(w io.Writer, rows []models.ConsumerResult, limit int) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(w, "%-16s %-16s %-6s %s\n", "Consumer", "Transformer", "Risk", "Class")
	fmt.Fprintln(w, rule)
	for i, r := range rows {
		if limit > 0 && i == limit {
			printer.Fprintf(w, "... %d more\n", len(rows)-limit)
			break
		}
		fmt.Fprintf(w, "%-16s %-16s %5d%% %s\n",
			r.ConsumerID, r.TransformerID, derive.ScorePercent(r.AggregateRiskScore), r.RiskClass)
	}
}

// printChart writes the transformer distribution as horizontal bars.
func printChart(w io.Writer, chart derive.TransformerChart) {
	if len(chart.Slices) == 0 {
		fmt.Fprintln(w, "No transformers at risk.")
		return
	}
	fmt.Fprintf(w, "%-16s %-9s %-6s\n", "Transformer", "Anomalies", "Share")
	fmt.Fprintln(w, rule)
	for _, s := range chart.Slices {
		printer.Fprintf(w, "%-16s %9d %5d%% %s\n", s.TransformerID, s.Anomalies, s.SharePercent, strings.Repeat("█", s.SharePercent/5))
	}
	printer.Fprintf(w, "Total anomalies: %d\n", chart.Total)
}
