//go:build integration
// +build integration

package integration

import (
	"os"
	"testing"

	"github.com/tordrt/metamind/internal/schema"
)

// envOr returns the environment variable or def when it is unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// verifyTablesExist checks that exactly the expected tables are present
func verifyTablesExist(t *testing.T, s *schema.Schema, expectedTables []string) {
	t.Helper()

	if len(s.Tables) != len(expectedTables) {
		t.Errorf("Expected %d tables, got %d (%v)", len(expectedTables), len(s.Tables), s.TableNames())
	}
	for _, name := range expectedTables {
		if s.Table(name) == nil {
			t.Errorf("Expected table %s not found in schema", name)
		}
	}
}

// verifyColumns checks that expected columns exist in a table
func verifyColumns(t *testing.T, table *schema.Table, expectedColumns []string) {
	t.Helper()

	for _, name := range expectedColumns {
		if table.Column(name) == nil {
			t.Errorf("Expected column %s not found in %s table", name, table.Name)
		}
	}
}

// verifyPrimaryKey checks the primary key columns and that they are non-nullable
func verifyPrimaryKey(t *testing.T, table *schema.Table, expectedPK []string) {
	t.Helper()

	if len(table.PrimaryKey) != len(expectedPK) {
		t.Errorf("Expected primary key %v, got %v", expectedPK, table.PrimaryKey)
		return
	}
	for i, pk := range expectedPK {
		if table.PrimaryKey[i] != pk {
			t.Errorf("Expected primary key %v, got %v", expectedPK, table.PrimaryKey)
			return
		}
		if col := table.Column(pk); col != nil && col.Nullable {
			t.Errorf("Primary key column %s should not be nullable", pk)
		}
	}
}

// verifyForeignKey checks that a foreign key from column to target table exists
func verifyForeignKey(t *testing.T, s *schema.Schema, tableName, sourceColumn, targetTable string) {
	t.Helper()

	table := s.Table(tableName)
	if table == nil {
		t.Fatalf("Table %s not found", tableName)
	}
	for _, fk := range table.ForeignKeys {
		if fk.RefTable == targetTable && len(fk.Columns) == 1 && fk.Columns[0] == sourceColumn {
			return
		}
	}
	t.Errorf("Expected foreign key from %s.%s to %s not found", tableName, sourceColumn, targetTable)
}
