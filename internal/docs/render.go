package docs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tordrt/metamind/internal/formatter"
	"github.com/tordrt/metamind/internal/schema"
)

// Markdown renders records as markdown without schema details. It is the
// documentation context sent along with chat questions.
func Markdown(records []Record) string {
	var b strings.Builder
	for i, rec := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		writeRecord(&b, rec, nil, nil)
	}
	return b.String()
}

// WriteMarkdown writes a single documentation document. When s is non-nil each
// table section also lists the table's columns, references and indexes.
func WriteMarkdown(w io.Writer, s *schema.Schema, records []Record) error {
	var buf bytes.Buffer
	_, _ = fmt.Fprintln(&buf, "# Schema Documentation")
	_, _ = fmt.Fprintln(&buf)
	for _, rec := range records {
		writeRecord(&buf, rec, tableFor(s, rec.Table), s)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write documentation: %w", err)
	}
	return nil
}

// WriteDir writes an overview plus one markdown file per documented table.
// Files are replaced atomically.
func WriteDir(dir string, s *schema.Schema, records []Record) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var overview bytes.Buffer
	_, _ = fmt.Fprintf(&overview, "# Schema Documentation\n\n")
	_, _ = fmt.Fprintf(&overview, "Each table has a corresponding file: `<table_name>.md`\n\n")
	_, _ = fmt.Fprintf(&overview, "## Tables\n\n")
	for _, rec := range records {
		_, _ = fmt.Fprintf(&overview, "- **%s**: %s", rec.Table, rec.Purpose)
		if len(rec.Tags) > 0 {
			_, _ = fmt.Fprintf(&overview, " _(%s)_", strings.Join(rec.Tags, ", "))
		}
		_, _ = fmt.Fprintln(&overview)
	}
	if err := formatter.WriteFile(filepath.Join(dir, formatter.OverviewFile+".md"), overview.Bytes()); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, rec := range records {
		var buf bytes.Buffer
		writeRecord(&buf, rec, tableFor(s, rec.Table), s)
		path := filepath.Join(dir, formatter.FileName(rec.Table)+".md")
		if err := formatter.WriteFile(path, buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write documentation for %s: %w", rec.Table, err)
		}
	}

	return nil
}

func tableFor(s *schema.Schema, name string) *schema.Table {
	if s == nil {
		return nil
	}
	return s.Table(name)
}

func writeRecord(w io.Writer, rec Record, table *schema.Table, s *schema.Schema) {
	_, _ = fmt.Fprintf(w, "## %s\n\n", rec.Table)
	_, _ = fmt.Fprintf(w, "**Purpose:** %s\n\n", rec.Purpose)
	_, _ = fmt.Fprintf(w, "**Tags:** %s\n\n", strings.Join(rec.Tags, ", "))

	_, _ = fmt.Fprintln(w, "### Column Descriptions")
	_, _ = fmt.Fprintln(w)
	for _, col := range rec.Columns {
		_, _ = fmt.Fprintf(w, "- **%s:** %s\n", col.Name, col.Description)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "### Data Quality Checks")
	_, _ = fmt.Fprintln(w)
	for _, check := range rec.QualityChecks {
		_, _ = fmt.Fprintf(w, "- %s\n", check)
	}
	_, _ = fmt.Fprintln(w)

	if table != nil {
		formatter.NewMarkdownFormatter(w).FormatTableBody(*table, s)
	}
}
