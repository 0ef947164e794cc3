package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/metamind/internal/schema"
)

// MarkdownFormatter formats schema as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the schema in markdown format
func (f *MarkdownFormatter) Format(s *schema.Schema) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Schema")
	_, _ = fmt.Fprintln(f.writer)

	for _, table := range s.Tables {
		_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name)
		f.FormatTableBody(table, s)
	}
	return nil
}

// FormatTableBody writes the column, reference and index sections of one table.
// When s is non-nil, foreign keys pointing at the table are listed as well.
func (f *MarkdownFormatter) FormatTableBody(table schema.Table, s *schema.Schema) {
	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)
	for _, col := range table.Columns {
		typeStr := col.Type
		if typeStr == "" {
			typeStr = "(untyped)"
		}
		if constraints := formatConstraints(col, &table); constraints != "" {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, typeStr, constraints)
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, typeStr)
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(table.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### References")
		_, _ = fmt.Fprintln(f.writer)
		for _, fk := range table.ForeignKeys {
			_, _ = fmt.Fprintf(f.writer, "- %s\n", formatForeignKey(fk))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if s != nil {
		if incoming := findIncomingReferences(table.Name, s); len(incoming) > 0 {
			_, _ = fmt.Fprintln(f.writer, "### Referenced by")
			_, _ = fmt.Fprintln(f.writer)
			for _, ref := range incoming {
				_, _ = fmt.Fprintf(f.writer, "- %s.%s\n", ref.SourceTable, strings.Join(ref.Columns, ", "))
			}
			_, _ = fmt.Fprintln(f.writer)
		}
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Indexes")
		_, _ = fmt.Fprintln(f.writer)
		for _, idx := range table.Indexes {
			name := idx.Name
			if name == "" {
				name = "(unnamed)"
			}
			if idx.IsUnique {
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s), unique\n", name, strings.Join(idx.Columns, ", "))
			} else {
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s)\n", name, strings.Join(idx.Columns, ", "))
			}
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func formatConstraints(col schema.Column, table *schema.Table) string {
	var constraints []string

	if table.IsPrimaryKey(col.Name) {
		constraints = append(constraints, "PK")
	}
	if col.IsUnique {
		constraints = append(constraints, "UNIQUE")
	}
	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}
	if col.DefaultValue != nil {
		constraints = append(constraints, fmt.Sprintf("DEFAULT %s", *col.DefaultValue))
	}

	return strings.Join(constraints, ", ")
}

// IncomingReference is a foreign key in another table pointing at this one
type IncomingReference struct {
	SourceTable string
	Columns     []string
}

func findIncomingReferences(tableName string, s *schema.Schema) []IncomingReference {
	var incoming []IncomingReference
	for _, table := range s.Tables {
		for _, fk := range table.ForeignKeys {
			if strings.EqualFold(fk.RefTable, tableName) {
				incoming = append(incoming, IncomingReference{SourceTable: table.Name, Columns: fk.Columns})
			}
		}
	}
	return incoming
}
