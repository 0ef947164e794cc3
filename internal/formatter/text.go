package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/metamind/internal/schema"
)

// TextFormatter formats schema as compact text. Its output is what the model sees,
// so it must stay deterministic for a given schema.
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the schema in compact text format
func (f *TextFormatter) Format(s *schema.Schema) error {
	for i, table := range s.Tables {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		f.formatTable(table)
	}
	return nil
}

// Text renders a schema with the TextFormatter and returns it as a string.
func Text(s *schema.Schema) string {
	var b strings.Builder
	_ = NewTextFormatter(&b).Format(s)
	return b.String()
}

func (f *TextFormatter) formatTable(table schema.Table) {
	pkStr := ""
	if len(table.PrimaryKey) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(table.PrimaryKey, ", "))
	}
	_, _ = fmt.Fprintf(f.writer, "TABLE %s%s\n", table.Name, pkStr)

	for _, col := range table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", formatColumnText(col))
	}

	if len(table.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  FOREIGN KEYS:")
		for _, fk := range table.ForeignKeys {
			_, _ = fmt.Fprintf(f.writer, "    %s\n", formatForeignKey(fk))
		}
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range table.Indexes {
			_, _ = fmt.Fprintf(f.writer, "    %s\n", formatIndex(idx))
		}
	}

	if len(table.SampleRows) > 0 {
		names := make([]string, 0, len(table.Columns))
		for _, col := range table.Columns {
			names = append(names, col.Name)
		}
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintf(f.writer, "  SAMPLE ROWS (%s):\n", strings.Join(names, " | "))
		for _, row := range table.SampleRows {
			_, _ = fmt.Fprintf(f.writer, "    %s\n", strings.Join(row, " | "))
		}
	}
}

func formatColumnText(col schema.Column) string {
	parts := []string{col.Name + ":"}
	if col.Type != "" {
		parts = append(parts, col.Type)
	}
	if col.IsUnique {
		parts = append(parts, "UNIQUE")
	}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.DefaultValue != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.DefaultValue))
	}
	return strings.Join(parts, " ")
}

// formatForeignKey renders "user_id → users(id)"; the column list is omitted when
// the reference targets the other table's primary key.
func formatForeignKey(fk schema.ForeignKey) string {
	target := fk.RefTable
	if len(fk.RefColumns) > 0 {
		target = fmt.Sprintf("%s(%s)", fk.RefTable, strings.Join(fk.RefColumns, ", "))
	}
	return fmt.Sprintf("%s → %s", strings.Join(fk.Columns, ", "), target)
}

func formatIndex(idx schema.Index) string {
	s := fmt.Sprintf("(%s)", strings.Join(idx.Columns, ", "))
	if idx.Name != "" {
		s = idx.Name + " " + s
	}
	if idx.IsUnique {
		s += " UNIQUE"
	}
	return s
}
