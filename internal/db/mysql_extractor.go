package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tordrt/metamind/internal/schema"
)

// MySQLExtractor handles schema extraction from MySQL
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
	sampleRows int
}

// NewMySQLExtractor creates a new MySQL schema extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string, sampleRows int) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
		sampleRows: sampleRows,
	}
}

// ExtractSchema extracts the complete schema for specified tables.
// If tables is empty, extracts all base tables in the database.
func (e *MySQLExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
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

func (e *MySQLExtractor) getTableNames(ctx context.Context, requested []string) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY create_time, table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var all []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		all = append(all, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return selectTables(all, requested)
}

func (e *MySQLExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}

	columns, err := e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns

	pk, err := e.extractPrimaryKey(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract primary key: %w", err)
	}
	table.PrimaryKey = pk

	foreignKeys, err := e.extractForeignKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	table.ForeignKeys = foreignKeys

	indexes, err := e.extractIndexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.IsUnique && len(idx.Columns) == 1 {
			if col := table.Column(idx.Columns[0]); col != nil {
				col.IsUnique = true
			}
		}
	}
	table.Indexes = indexes

	if e.sampleRows > 0 {
		quoted := "`" + strings.ReplaceAll(tableName, "`", "``") + "`"
		samples, err := sampleRows(ctx, e.client.GetDB(), quoted, e.sampleRows)
		if err != nil {
			return nil, fmt.Errorf("failed to read sample rows: %w", err)
		}
		table.SampleRows = samples
	}

	table.Normalize()
	return table, nil
}

// extractColumns uses column_type rather than data_type so that lengths, enum
// members and UNSIGNED survive.
func (e *MySQLExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable,
			c.column_default
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var nullable string
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Name, &col.Type, &nullable, &defaultVal); err != nil {
			return nil, err
		}

		col.Nullable = nullable == "YES"
		if defaultVal.Valid {
			value := defaultVal.String
			col.DefaultValue = &value
		}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (e *MySQLExtractor) extractPrimaryKey(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var pk []string
	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		pk = append(pk, colName)
	}

	return pk, rows.Err()
}

func (e *MySQLExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name
		FROM information_schema.key_column_usage kcu
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var foreignKeys []schema.ForeignKey
	byName := make(map[string]int)
	for rows.Next() {
		var constraintName, column, refTable, refColumn string
		if err := rows.Scan(&constraintName, &column, &refTable, &refColumn); err != nil {
			return nil, err
		}

		idx, ok := byName[constraintName]
		if !ok {
			idx = len(foreignKeys)
			byName[constraintName] = idx
			foreignKeys = append(foreignKeys, schema.ForeignKey{RefTable: refTable})
		}
		foreignKeys[idx].Columns = append(foreignKeys[idx].Columns, column)
		foreignKeys[idx].RefColumns = append(foreignKeys[idx].RefColumns, refColumn)
	}

	return foreignKeys, rows.Err()
}

func (e *MySQLExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := `
		SELECT
			s.index_name,
			s.non_unique = 0 AS is_unique,
			GROUP_CONCAT(s.column_name ORDER BY s.seq_in_index) AS column_names
		FROM information_schema.statistics s
		WHERE s.table_schema = ?
			AND s.table_name = ?
			AND s.index_name != 'PRIMARY'
		GROUP BY s.index_name, s.non_unique
		ORDER BY s.index_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var indexes []schema.Index
	for rows.Next() {
		var idx schema.Index
		var isUnique int
		var columnNames string

		if err := rows.Scan(&idx.Name, &isUnique, &columnNames); err != nil {
			return nil, err
		}

		idx.IsUnique = isUnique == 1
		idx.Columns = strings.Split(columnNames, ",")
		indexes = append(indexes, idx)
	}

	return indexes, rows.Err()
}
