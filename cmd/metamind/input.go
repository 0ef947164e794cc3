package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/tordrt/metamind"
	"github.com/tordrt/metamind/internal/schema"
)

// inputFlags selects the schema source shared by extract, docs and chat.
type inputFlags struct {
	sqlitePath string
	ddlPath    string
	dbURL      string
	tables     string
	exclude    string
	schemaName string
	sampleRows int
}

func (f *inputFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sqlitePath, "sqlite", "", "SQLite database file path")
	cmd.Flags().StringVar(&f.ddlPath, "ddl", "", "SQL DDL file path, or - for stdin")
	cmd.Flags().StringVar(&f.dbURL, "db-url", "", "Database URL (postgres://, mysql://, sqlite://)")
	cmd.Flags().StringVarP(&f.tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	cmd.Flags().StringVar(&f.exclude, "exclude", "", "Tables to skip (comma-separated, optional)")
	cmd.Flags().StringVarP(&f.schemaName, "schema", "s", "", "Database schema name (default: public for PostgreSQL)")
	cmd.Flags().IntVar(&f.sampleRows, "sample-rows", -1, "Sample rows per table (default: from config)")
}

func (f *inputFlags) validate() error {
	count := 0
	for _, v := range []string{f.sqlitePath, f.ddlPath, f.dbURL} {
		if v != "" {
			count++
		}
	}
	if count == 0 {
		return fmt.Errorf("one of --sqlite, --ddl, or --db-url must be specified")
	}
	if count > 1 {
		return fmt.Errorf("only one of --sqlite, --ddl, or --db-url can be specified")
	}
	return nil
}

func (f *inputFlags) options(defaultSampleRows int) *metamind.Options {
	sampleRows := f.sampleRows
	if sampleRows < 0 {
		sampleRows = defaultSampleRows
	}
	return &metamind.Options{
		Tables:        splitList(f.tables),
		ExcludeTables: splitList(f.exclude),
		SchemaName:    f.schemaName,
		SampleRows:    sampleRows,
	}
}

// load extracts the schema. DDL diagnostics are written to stderr.
func (f *inputFlags) load(ctx context.Context, stdin io.Reader, stderr io.Writer, defaultSampleRows int) (*schema.Schema, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	opts := f.options(defaultSampleRows)

	switch {
	case f.sqlitePath != "":
		data, err := os.ReadFile(f.sqlitePath)
		if err != nil {
			return nil, schema.NewUnreadable("cannot read database file", err)
		}
		return metamind.ExtractFromFile(ctx, data, opts)

	case f.ddlPath != "":
		var data []byte
		var err error
		if f.ddlPath == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(f.ddlPath)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read DDL: %w", err)
		}
		s, diagnostics, err := metamind.ExtractFromDDL(string(data), opts)
		for _, d := range diagnostics {
			_, _ = fmt.Fprintf(stderr, "warning: %s\n", d)
		}
		return s, err

	default:
		return metamind.ExtractSchema(ctx, f.dbURL, opts)
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// apiKey returns the configured key or asks for it on the terminal.
func apiKey(line *liner.State) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}

	if line == nil {
		line = liner.NewLiner()
		defer func() { _ = line.Close() }()
	}
	key, err := line.PasswordPrompt("Groq API key: ")
	if err != nil {
		return "", fmt.Errorf("no API key: set GROQ_API_KEY or enter it when prompted: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("no API key: set GROQ_API_KEY or enter it when prompted")
	}
	return key, nil
}
