// Package report builds the electricity theft report for an analysis result
// and renders it in several output formats.
package report

import (
	"strconv"
	"time"

	"github.com/microsoft/gridscan/internal/derive"
	"github.com/microsoft/gridscan/internal/inspection"
	"github.com/microsoft/gridscan/internal/models"
)

const (
	Title            = "Electricity Theft Detection Report"
	generatedLayout  = "2006-01-02 15:04:05"
	summaryHeading   = "Summary Statistics"
	anomaliesHeading = "Detected Anomalies"
	normalHeading    = "Normal Entries"
)

// Document is the format-independent report.
type Document struct {
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	Sections    []Section `json:"sections"`
}

// Generated returns the "Generated on" line.
func (d *Document) Generated() string {
	return "Generated on: " + d.GeneratedAt.Format(generatedLayout)
}

// Section is one titled table. NewPage sections start on a fresh page.
type Section struct {
	Heading string `json:"heading"`
	NewPage bool   `json:"new_page,omitempty"`
	Table   Table  `json:"table"`
}

type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Pages splits the sections at page breaks. The first page always exists.
func (d *Document) Pages() [][]Section {
	pages := [][]Section{nil}
	for _, s := range d.Sections {
		if s.NewPage && len(pages[len(pages)-1]) > 0 {
			pages = append(pages, nil)
		}
		pages[len(pages)-1] = append(pages[len(pages)-1], s)
	}
	return pages
}

// Build assembles the report for result. Anomalies are listed with their
// inspection status from statuses. The normal entries page holds rows whose
// stored risk class is exactly "normal"; unlike the dashboard classification
// this comparison is case-sensitive.
func Build(result *models.AnalysisResult, statuses inspection.Snapshot, now time.Time) (*Document, error) {
	if result == nil {
		return nil, &ExportError{Op: "build", Err: errNoResult}
	}

	doc := &Document{Title: Title, GeneratedAt: now}
	doc.Sections = append(doc.Sections, summarySection(result.Summary))

	if len(result.Anomalies) > 0 {
		rows := make([][]string, 0, len(result.Anomalies))
		for _, a := range result.Anomalies {
			rows = append(rows, []string{
				a.ConsumerID,
				a.TransformerID,
				percent(a),
				a.RiskClass,
				statuses.Label(a.ConsumerID),
			})
		}
		doc.Sections = append(doc.Sections, Section{
			Heading: anomaliesHeading,
			Table: Table{
				Columns: []string{"Consumer ID", "Transformer ID", "Risk Score", "Risk Class", "Status"},
				Rows:    rows,
			},
		})
	}

	var normal [][]string
	for _, r := range result.Results {
		if r.RiskClass != string(models.RiskNormal) {
			continue
		}
		normal = append(normal, []string{r.ConsumerID, r.TransformerID, percent(r), r.RiskClass})
	}
	if len(normal) > 0 {
		doc.Sections = append(doc.Sections, Section{
			Heading: normalHeading,
			NewPage: true,
			Table: Table{
				Columns: []string{"Consumer ID", "Transformer ID", "Risk Score", "Risk Class"},
				Rows:    normal,
			},
		})
	}
	return doc, nil
}

func summarySection(s models.Summary) Section {
	return Section{
		Heading: summaryHeading,
		Table: Table{
			Columns: []string{"Metric", "Value"},
			Rows: [][]string{
				{"Grid Health", strconv.FormatFloat(s.GridHealthScore, 'f', -1, 64) + "%"},
				{"Critical Cases", strconv.Itoa(s.CriticalCases)},
				{"Anomalies Detected", strconv.Itoa(s.AnomaliesDetected)},
				{"Est. Revenue Loss", "Rs. " + s.TotalLossCalculated.Plain()},
			},
		},
	}
}

func percent(r models.ConsumerResult) string {
	return strconv.Itoa(derive.ScorePercent(r.AggregateRiskScore)) + "%"
}
