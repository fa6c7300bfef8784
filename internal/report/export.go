package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/microsoft/gridscan/internal/inspection"
	"github.com/microsoft/gridscan/internal/models"
	"github.com/spf13/pflag"
)

// BaseName is the report file name without extension.
const BaseName = "electricity_theft_report"

var errNoResult = errors.New("no analysis result to export")

// ExportError reports any failure while producing a report. No output is
// written when it is returned.
type ExportError struct {
	Op  string
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Op, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Format is a report output format. It implements pflag.Value so it can be
// bound directly to a command-line flag.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{FormatMarkdown, FormatHTML, FormatText, FormatJSON}

func (f *Format) String() string { return string(*f) }

func (f *Format) Set(s string) error {
	v := Format(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case FormatMarkdown, FormatHTML, FormatText, FormatJSON:
		*f = v
		return nil
	case "markdown":
		*f = FormatMarkdown
		return nil
	case "text":
		*f = FormatText
		return nil
	}
	return fmt.Errorf("must be one of md, html, txt, json")
}

func (f *Format) Type() string { return "format" }

var _ pflag.Value = (*Format)(nil)

// Filename returns the report file name for format.
func Filename(format Format, gzipped bool) string {
	name := BaseName + "." + string(format)
	if gzipped {
		name += ".gz"
	}
	return name
}

// Exporter renders reports.
type Exporter struct {
	Format Format
	Gzip   bool
	Now    func() time.Time
	Logger *slog.Logger
}

func (e *Exporter) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Exporter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Render builds and renders the report into memory.
func (e *Exporter) Render(result *models.AnalysisResult, statuses inspection.Snapshot) ([]byte, error) {
	format := e.Format
	if format == "" {
		format = FormatMarkdown
	}
	r, err := RendererFor(format)
	if err != nil {
		return nil, &ExportError{Op: "render", Err: err}
	}

	doc, err := Build(result, statuses, e.now())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := r.Render(&buf, doc); err != nil {
		return nil, &ExportError{Op: "render", Err: err}
	}
	if !e.Gzip {
		return buf.Bytes(), nil
	}

	var zbuf bytes.Buffer
	zw := gzip.NewWriter(&zbuf)
	if _, err := zw.Write(buf.Bytes()); err != nil {
		return nil, &ExportError{Op: "compress", Err: err}
	}
	if err := zw.Close(); err != nil {
		return nil, &ExportError{Op: "compress", Err: err}
	}
	return zbuf.Bytes(), nil
}

// Export renders the report and writes it to w only once rendering has
// fully succeeded.
func (e *Exporter) Export(w io.Writer, result *models.AnalysisResult, statuses inspection.Snapshot) error {
	data, err := e.Render(result, statuses)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return &ExportError{Op: "write", Err: err}
	}
	return nil
}

// WriteFile renders the report into dir under its standard file name and
// returns the path. The file is written to a temporary name first and
// renamed into place, so a failed export leaves no partial file behind.
func (e *Exporter) WriteFile(dir string, result *models.AnalysisResult, statuses inspection.Snapshot) (string, error) {
	format := e.Format
	if format == "" {
		format = FormatMarkdown
	}
	data, err := e.Render(result, statuses)
	if err != nil {
		return "", err
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &ExportError{Op: "write", Err: err}
	}
	path := filepath.Join(dir, Filename(format, e.Gzip))

	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return "", &ExportError{Op: "write", Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return "", &ExportError{Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return "", &ExportError{Op: "write", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return "", &ExportError{Op: "write", Err: err}
	}

	e.logger().Debug("report written", "path", path, "format", string(format), "bytes", len(data))
	return path, nil
}
