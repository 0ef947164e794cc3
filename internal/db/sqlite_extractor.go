package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/metamind/internal/schema"
)

// SQLiteExtractor handles schema extraction from SQLite
type SQLiteExtractor struct {
	client     *SQLiteClient
	sampleRows int
}

// NewSQLiteExtractor creates a new SQLite schema extractor. When sampleRows is
// positive, up to that many rows are read from every table.
func NewSQLiteExtractor(client *SQLiteClient, sampleRows int) *SQLiteExtractor {
	return &SQLiteExtractor{
		client:     client,
		sampleRows: sampleRows,
	}
}

// ExtractSchema extracts the complete schema for specified tables.
// If tables is empty, extracts all tables in creation order.
func (e *SQLiteExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	tableNames, err := e.getTableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	extracted := make([]schema.Table, 0, len(tableNames))
	for _, tableName := range tableNames {
		table, err := e.extractTable(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", tableName, err)
		}
		extracted = append(extracted, *table)
	}

	return &schema.Schema{Tables: extracted}, nil
}

// getTableNames returns the tables to extract. Requested names are matched
// case-insensitively against the catalog and keep catalog order.
func (e *SQLiteExtractor) getTableNames(ctx context.Context, requested []string) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY rowid
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var all []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		all = append(all, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return selectTables(all, requested)
}

func (e *SQLiteExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}

	columns, pk, err := e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns
	table.PrimaryKey = pk

	foreignKeys, err := e.extractForeignKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	table.ForeignKeys = foreignKeys

	if err := e.extractIndexes(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}

	if e.sampleRows > 0 {
		samples, err := sampleRows(ctx, e.client.GetDB(), quoteIdent(tableName), e.sampleRows)
		if err != nil {
			return nil, fmt.Errorf("failed to read sample rows: %w", err)
		}
		table.SampleRows = samples
	}

	table.Normalize()
	return table, nil
}

// extractColumns reads PRAGMA table_info, which lists columns in declaration order
// and reports each primary-key column's 1-based position in the key.
func (e *SQLiteExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, []string, error) {
	rows, err := e.client.GetDB().QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(tableName)))
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	type pkColumn struct {
		name  string
		order int
	}

	var columns []schema.Column
	var pkColumns []pkColumn

	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, nil, err
		}

		col := schema.Column{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0,
		}
		if defaultValue.Valid {
			value := defaultValue.String
			col.DefaultValue = &value
		}
		if pk > 0 {
			pkColumns = append(pkColumns, pkColumn{name: name, order: pk})
		}

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	sort.SliceStable(pkColumns, func(i, j int) bool { return pkColumns[i].order < pkColumns[j].order })
	var pk []string
	for _, c := range pkColumns {
		pk = append(pk, c.name)
	}

	return columns, pk, nil
}

// extractForeignKeys reads PRAGMA foreign_key_list. Rows sharing an id form one
// (possibly composite) reference; seq orders its columns.
func (e *SQLiteExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	rows, err := e.client.GetDB().QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(tableName)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var foreignKeys []schema.ForeignKey
	byID := make(map[int]int)

	for rows.Next() {
		var id, seq int
		var refTable, fromCol, onUpdate, onDelete, match string
		var toCol sql.NullString

		if err := rows.Scan(&id, &seq, &refTable, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}

		idx, ok := byID[id]
		if !ok {
			idx = len(foreignKeys)
			byID[id] = idx
			foreignKeys = append(foreignKeys, schema.ForeignKey{RefTable: refTable})
		}
		fk := &foreignKeys[idx]
		fk.Columns = append(fk.Columns, fromCol)
		// A NULL target column means the reference points at the parent's primary key.
		if toCol.Valid && toCol.String != "" {
			fk.RefColumns = append(fk.RefColumns, toCol.String)
		}
	}

	return foreignKeys, rows.Err()
}

// extractIndexes reads PRAGMA index_list/index_info. Single-column unique indexes
// mark their column unique; indexes created by CREATE INDEX or multi-column UNIQUE
// constraints are listed on the table. Primary-key indexes are skipped.
func (e *SQLiteExtractor) extractIndexes(ctx context.Context, table *schema.Table) error {
	db := e.client.GetDB()

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(table.Name)))
	if err != nil {
		return err
	}

	type indexEntry struct {
		name   string
		unique bool
		origin string
	}
	var entries []indexEntry
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			_ = rows.Close()
			return err
		}
		entries = append(entries, indexEntry{name: name, unique: unique == 1, origin: origin})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	// index_list reports the most recently created index first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	for _, entry := range entries {
		if entry.origin == "pk" {
			continue
		}

		columns, err := e.indexColumns(ctx, entry.name)
		if err != nil {
			return err
		}
		if len(columns) == 0 {
			continue
		}

		if entry.unique && len(columns) == 1 {
			if col := table.Column(columns[0]); col != nil {
				col.IsUnique = true
			}
		}
		if strings.HasPrefix(entry.name, "sqlite_autoindex") && len(columns) == 1 {
			continue
		}

		name := entry.name
		if strings.HasPrefix(name, "sqlite_autoindex") {
			name = ""
		}
		table.Indexes = append(table.Indexes, schema.Index{
			Name:     name,
			Columns:  columns,
			IsUnique: entry.unique,
		})
	}

	return nil
}

func (e *SQLiteExtractor) indexColumns(ctx context.Context, indexName string) ([]string, error) {
	rows, err := e.client.GetDB().QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(indexName)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var colName sql.NullString

		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		// Expression index columns have no name.
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}

	return columns, rows.Err()
}

// quoteIdent quotes a SQLite identifier for use inside PRAGMA and SELECT statements.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
