package formatter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/tordrt/metamind/internal/schema"
)

// OverviewFile is the name (without extension) of the per-directory index file.
const OverviewFile = "_overview"

// MultiFileFormatter writes schema to multiple files in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes an overview file plus one file per table. Every file is replaced
// atomically so readers never see a half-written document.
func (f *MultiFileFormatter) Format(s *schema.Schema) error {
	if err := os.MkdirAll(f.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var overview bytes.Buffer
	if f.OutputFormat == FormatMarkdown {
		f.writeMarkdownOverview(&overview, s)
	} else {
		f.writeTextOverview(&overview, s)
	}
	if err := WriteFile(filepath.Join(f.OutputDir, OverviewFile+f.extension()), overview.Bytes()); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, table := range s.Tables {
		var buf bytes.Buffer
		if f.OutputFormat == FormatMarkdown {
			_, _ = fmt.Fprintf(&buf, "## %s\n\n", table.Name)
			NewMarkdownFormatter(&buf).FormatTableBody(table, s)
		} else {
			NewTextFormatter(&buf).formatTable(table)
		}

		path := filepath.Join(f.OutputDir, FileName(table.Name)+f.extension())
		if err := WriteFile(path, buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeMarkdownOverview(buf *bytes.Buffer, s *schema.Schema) {
	_, _ = fmt.Fprintf(buf, "# Schema Overview\n\n")
	_, _ = fmt.Fprintf(buf, "Each table has a corresponding file: `<table_name>%s`\n\n", f.extension())
	_, _ = fmt.Fprintf(buf, "## Tables\n\n")

	for _, table := range sortedTables(s) {
		_, _ = fmt.Fprintf(buf, "- **%s**", table.Name)
		if targets := referencedTables(table); len(targets) > 0 {
			_, _ = fmt.Fprintf(buf, " (references: %s)", strings.Join(targets, ", "))
		}
		_, _ = fmt.Fprintf(buf, "\n")
	}
}

func (f *MultiFileFormatter) writeTextOverview(buf *bytes.Buffer, s *schema.Schema) {
	_, _ = fmt.Fprintf(buf, "SCHEMA OVERVIEW\n")
	_, _ = fmt.Fprintf(buf, "Each table has a file: <table_name>%s\n\n", f.extension())

	for _, table := range sortedTables(s) {
		_, _ = fmt.Fprintf(buf, "%s", table.Name)
		if targets := referencedTables(table); len(targets) > 0 {
			_, _ = fmt.Fprintf(buf, " (references: %s)", strings.Join(targets, ","))
		}
		_, _ = fmt.Fprintf(buf, "\n")
	}
}

func (f *MultiFileFormatter) extension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}

func sortedTables(s *schema.Schema) []schema.Table {
	sorted := make([]schema.Table, len(s.Tables))
	copy(sorted, s.Tables)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// referencedTables lists the distinct tables a table's foreign keys point at
func referencedTables(table schema.Table) []string {
	var targets []string
	seen := make(map[string]bool)
	for _, fk := range table.ForeignKeys {
		if !seen[fk.RefTable] {
			seen[fk.RefTable] = true
			targets = append(targets, fk.RefTable)
		}
	}
	return targets
}

// FileName turns a table name into a safe file name stem.
func FileName(table string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, table)
	if name == "" || name == "." || name == ".." || name == OverviewFile {
		name = "table_" + name
	}
	return name
}

// WriteFile atomically replaces path with content.
func WriteFile(path string, content []byte) error {
	return atomic.WriteFile(path, bytes.NewReader(content))
}
