// Package dataset reads and checks the meter reading CSV files uploaded for
// analysis.
package dataset

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// RequiredColumns must appear in the header of every uploaded dataset.
var RequiredColumns = []string{"consumer_id", "energy_consumed", "transformer_id"}

// SampleName is the file name the sample dataset is offered under.
const SampleName = "sample_dataset.csv"

//go:embed sample_dataset.csv
var sample []byte

// Row represents a single CSV row with column name to value mapping.
type Row map[string]string

// MissingColumnsError lists required columns absent from a dataset header.
type MissingColumnsError struct {
	Path    string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("csv: %s is missing required column(s): %s", e.Path, strings.Join(e.Missing, ", "))
}

// LoadCSV reads a CSV file and returns rows as maps of column to value.
// The first row is treated as headers (column names).
func LoadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv: %s is empty (no header row)", path)
	}

	headers := normalizeHeader(records[0])
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(headers))
		for j, h := range headers {
			row[h] = record[j]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Header reads only the header row of the CSV file at path.
func Header(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	header, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv: %s is empty (no header row)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}
	return normalizeHeader(header), nil
}

// RequireColumns checks that the header of the CSV at path contains cols,
// or RequiredColumns when none are given.
func RequireColumns(path string, cols ...string) error {
	if len(cols) == 0 {
		cols = RequiredColumns
	}
	header, err := Header(path)
	if err != nil {
		return err
	}

	var missing []string
	for _, c := range cols {
		if !slices.Contains(header, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Path: path, Missing: missing}
	}
	return nil
}

// Stats summarizes a loaded dataset.
type Stats struct {
	Rows         int
	Consumers    int
	Transformers int
}

// Summarize counts rows and distinct consumers and transformers.
func Summarize(rows []Row) Stats {
	consumers := map[string]struct{}{}
	transformers := map[string]struct{}{}
	for _, r := range rows {
		if id := r["consumer_id"]; id != "" {
			consumers[id] = struct{}{}
		}
		if id := r["transformer_id"]; id != "" {
			transformers[id] = struct{}{}
		}
	}
	return Stats{Rows: len(rows), Consumers: len(consumers), Transformers: len(transformers)}
}

// WriteSample writes the sample dataset to w.
func WriteSample(w io.Writer) error {
	_, err := w.Write(sample)
	return err
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}
