package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tordrt/metamind/internal/schema"
)

// maxSampleValueLen caps how much of one sampled value ends up in a prompt.
const maxSampleValueLen = 80

// Extractor reflects a database into a canonical schema.
// If tables is empty, all tables are extracted.
type Extractor interface {
	ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error)
}

// ErrTablesNotFound is returned when a requested table is not in the database.
var ErrTablesNotFound = errors.New("tables not found")

var (
	_ Extractor = (*SQLiteExtractor)(nil)
	_ Extractor = (*PostgresExtractor)(nil)
	_ Extractor = (*MySQLExtractor)(nil)
)

// selectTables keeps the requested tables from the catalog list, in catalog order,
// using the catalog spelling. An unknown requested table is an error.
func selectTables(catalog, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return catalog, nil
	}

	wanted := make(map[string]bool, len(requested))
	for _, name := range requested {
		wanted[strings.ToLower(name)] = true
	}

	var selected []string
	for _, name := range catalog {
		key := strings.ToLower(name)
		if wanted[key] {
			selected = append(selected, name)
			delete(wanted, key)
		}
	}

	if len(wanted) > 0 {
		var missing []string
		for _, name := range requested {
			if wanted[strings.ToLower(name)] {
				missing = append(missing, name)
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrTablesNotFound, strings.Join(missing, ", "))
	}

	return selected, nil
}

// sampleRows reads up to limit rows from a table and renders every value as text.
func sampleRows(ctx context.Context, db *sql.DB, quotedTable string, limit int) ([][]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quotedTable, limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var samples [][]string
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatSampleValue(v)
		}
		samples = append(samples, row)
	}

	return samples, rows.Err()
}

func formatSampleValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		if !utf8.Valid(val) {
			return fmt.Sprintf("<blob %d bytes>", len(val))
		}
		s = string(val)
	case time.Time:
		s = val.Format(time.RFC3339)
	default:
		s = fmt.Sprint(val)
	}

	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxSampleValueLen {
		s = string([]rune(s)[:maxSampleValueLen]) + "..."
	}
	return s
}
