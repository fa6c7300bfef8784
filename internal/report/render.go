package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer writes a document in one output format.
type Renderer interface {
	Render(w io.Writer, doc *Document) error
}

// RendererFor returns the renderer for format.
func RendererFor(format Format) (Renderer, error) {
	switch format {
	case FormatMarkdown:
		return markdownRenderer{}, nil
	case FormatHTML:
		return htmlRenderer{md: goldmark.New(goldmark.WithExtensions(extension.Table))}, nil
	case FormatText:
		return textRenderer{}, nil
	case FormatJSON:
		return jsonRenderer{}, nil
	}
	return nil, fmt.Errorf("unsupported report format %q", format)
}

type markdownRenderer struct{}

func (markdownRenderer) Render(w io.Writer, doc *Document) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", doc.Title, doc.Generated())
	for i, page := range doc.Pages() {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		writeMarkdownPage(&b, page)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeMarkdownPage(b *strings.Builder, page []Section) {
	for _, s := range page {
		fmt.Fprintf(b, "\n## %s\n\n", s.Heading)
		writeMarkdownRow(b, s.Table.Columns)
		seps := make([]string, len(s.Table.Columns))
		for i := range seps {
			seps[i] = "---"
		}
		writeMarkdownRow(b, seps)
		for _, row := range s.Table.Rows {
			writeMarkdownRow(b, row)
		}
	}
}

func writeMarkdownRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(escapeCell(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

type htmlRenderer struct {
	md goldmark.Markdown
}

const pageBreak = `<div style="page-break-after: always"></div>`

func (r htmlRenderer) Render(w io.Writer, doc *Document) error {
	var body bytes.Buffer
	for i, page := range doc.Pages() {
		var src strings.Builder
		if i == 0 {
			fmt.Fprintf(&src, "# %s\n\n%s\n", doc.Title, doc.Generated())
		} else {
			body.WriteString(pageBreak + "\n")
		}
		writeMarkdownPage(&src, page)
		if err := r.md.Convert([]byte(src.String()), &body); err != nil {
			return fmt.Errorf("converting page %d: %w", i+1, err)
		}
	}

	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 1.5em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; }
th { background: #2980b9; color: #fff; }
</style>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(doc.Title), body.String())
	return err
}

type textRenderer struct{}

func (textRenderer) Render(w io.Writer, doc *Document) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", doc.Title, doc.Generated())
	for i, page := range doc.Pages() {
		if i > 0 {
			b.WriteString("\f")
		}
		for _, s := range page {
			fmt.Fprintf(&b, "\n%s\n%s\n", s.Heading, strings.Repeat("=", runewidth.StringWidth(s.Heading)))
			writeTextTable(&b, s.Table)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeTextTable(b *strings.Builder, t Table) {
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = runewidth.StringWidth(c)
	}
	for _, row := range t.Rows {
		for i, c := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(c))
			}
		}
	}

	writeTextRow(b, t.Columns, widths)
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}
	writeTextRow(b, rule, widths)
	for _, row := range t.Rows {
		writeTextRow(b, row, widths)
	}
}

func writeTextRow(b *strings.Builder, cells []string, widths []int) {
	var line strings.Builder
	for i, w := range widths {
		if i > 0 {
			line.WriteString("  ")
		}
		var c string
		if i < len(cells) {
			c = cells[i]
		}
		line.WriteString(padRight(c, w))
	}
	b.WriteString(strings.TrimRight(line.String(), " "))
	b.WriteString("\n")
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

type jsonRenderer struct{}

func (jsonRenderer) Render(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
