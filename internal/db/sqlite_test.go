package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tordrt/metamind/internal/schema"
)

func createTestDB(t *testing.T) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	defer func() { _ = conn.Close() }()

	statements := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL UNIQUE, name TEXT DEFAULT 'anon')`,
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			total decimal(10, 2),
			created_at TIMESTAMP
		)`,
		`CREATE TABLE "order items" (
			order_id INTEGER,
			line INTEGER,
			sku VARCHAR(32),
			PRIMARY KEY (order_id, line),
			FOREIGN KEY (order_id) REFERENCES orders(id),
			UNIQUE (order_id, sku)
		)`,
		`CREATE INDEX idx_orders_user ON orders(user_id)`,
		`INSERT INTO users (email, name) VALUES ('a@example.com', 'Ann'), ('b@example.com', NULL)`,
	}
	for _, stmt := range statements {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("failed to execute %q: %v", stmt, err)
		}
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("failed to close test database: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read test database: %v", err)
	}
	return data
}

func extractBytes(t *testing.T, data []byte, tables []string, samples int) (*schema.Schema, error) {
	t.Helper()
	ctx := context.Background()

	client, err := OpenSQLiteBytes(ctx, data)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	return NewSQLiteExtractor(client, samples).ExtractSchema(ctx, tables)
}

func TestSQLiteExtractSchema(t *testing.T) {
	s, err := extractBytes(t, createTestDB(t), nil, 0)
	if err != nil {
		t.Fatalf("ExtractSchema() error = %v", err)
	}

	if diff := cmp.Diff([]string{"users", "orders", "order items"}, s.TableNames()); diff != "" {
		t.Fatalf("table names mismatch (-want +got):\n%s", diff)
	}

	anon := "'anon'"
	wantUsers := schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: "INTEGER", Nullable: false},
			{Name: "email", Type: "TEXT", Nullable: false, IsUnique: true},
			{Name: "name", Type: "TEXT", Nullable: true, DefaultValue: &anon},
		},
		PrimaryKey: []string{"id"},
	}
	if diff := cmp.Diff(wantUsers, *s.Table("users")); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}

	orders := s.Table("orders")
	var columnNames []string
	for _, c := range orders.Columns {
		columnNames = append(columnNames, c.Name)
	}
	if diff := cmp.Diff([]string{"id", "user_id", "total", "created_at"}, columnNames); diff != "" {
		t.Errorf("orders column order mismatch (-want +got):\n%s", diff)
	}
	if got := orders.Column("total").Type; got != "DECIMAL(10,2)" {
		t.Errorf("total type = %q, want DECIMAL(10,2)", got)
	}
	wantFK := []schema.ForeignKey{{Columns: []string{"user_id"}, RefTable: "users", RefColumns: []string{"id"}}}
	if diff := cmp.Diff(wantFK, orders.ForeignKeys); diff != "" {
		t.Errorf("orders foreign keys mismatch (-want +got):\n%s", diff)
	}
	wantIndexes := []schema.Index{{Name: "idx_orders_user", Columns: []string{"user_id"}}}
	if diff := cmp.Diff(wantIndexes, orders.Indexes); diff != "" {
		t.Errorf("orders indexes mismatch (-want +got):\n%s", diff)
	}

	items := s.Table("order items")
	if diff := cmp.Diff([]string{"order_id", "line"}, items.PrimaryKey); diff != "" {
		t.Errorf("composite primary key mismatch (-want +got):\n%s", diff)
	}
	for _, name := range items.PrimaryKey {
		if items.Column(name).Nullable {
			t.Errorf("primary key column %s should not be nullable", name)
		}
	}
	wantItemIndexes := []schema.Index{{Columns: []string{"order_id", "sku"}, IsUnique: true}}
	if diff := cmp.Diff(wantItemIndexes, items.Indexes); diff != "" {
		t.Errorf("order items indexes mismatch (-want +got):\n%s", diff)
	}
	if items.Column("sku").IsUnique {
		t.Error("sku is only unique together with order_id")
	}
}

func TestSQLiteExtractSampleRows(t *testing.T) {
	s, err := extractBytes(t, createTestDB(t), nil, 3)
	if err != nil {
		t.Fatalf("ExtractSchema() error = %v", err)
	}

	want := [][]string{
		{"1", "a@example.com", "Ann"},
		{"2", "b@example.com", "NULL"},
	}
	if diff := cmp.Diff(want, s.Table("users").SampleRows); diff != "" {
		t.Errorf("sample rows mismatch (-want +got):\n%s", diff)
	}
	if len(s.Table("orders").SampleRows) != 0 {
		t.Errorf("expected no sample rows for empty table")
	}
}

func TestSQLiteExtractRequestedTables(t *testing.T) {
	data := createTestDB(t)

	s, err := extractBytes(t, data, []string{"ORDERS", "users"}, 0)
	if err != nil {
		t.Fatalf("ExtractSchema() error = %v", err)
	}
	if diff := cmp.Diff([]string{"users", "orders"}, s.TableNames()); diff != "" {
		t.Errorf("table names mismatch (-want +got):\n%s", diff)
	}

	if _, err := extractBytes(t, data, []string{"missing"}, 0); err == nil {
		t.Error("expected error for unknown table")
	}
}

func TestOpenSQLiteBytesUnreadable(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "text file", data: []byte("CREATE TABLE users (id INT);")},
		{name: "corrupt body", data: append([]byte("SQLite format 3\x00"), []byte(strings.Repeat("x", 200))...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := OpenSQLiteBytes(context.Background(), tt.data)
			if err == nil {
				_ = client.Close()
				t.Fatal("expected error")
			}
			var extractionErr *schema.ExtractionError
			if !errors.As(err, &extractionErr) || extractionErr.Kind != schema.Unreadable {
				t.Errorf("error = %v, want Unreadable extraction error", err)
			}
		})
	}
}

func TestOpenSQLiteBytesRemovesTempFile(t *testing.T) {
	client, err := OpenSQLiteBytes(context.Background(), createTestDB(t))
	if err != nil {
		t.Fatalf("OpenSQLiteBytes() error = %v", err)
	}
	path := client.tempPath
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("temp file missing while open: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("temp file %s still exists after Close", path)
	}
}

func TestFormatSampleValue(t *testing.T) {
	long := strings.Repeat("a", 100)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: "NULL"},
		{name: "int", in: int64(42), want: "42"},
		{name: "text bytes", in: []byte("hello  \n world"), want: "hello world"},
		{name: "binary", in: []byte{0xff, 0xfe, 0x00}, want: "<blob 3 bytes>"},
		{name: "long", in: long, want: strings.Repeat("a", maxSampleValueLen) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatSampleValue(tt.in); got != tt.want {
				t.Errorf("formatSampleValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelectTables(t *testing.T) {
	catalog := []string{"Users", "orders", "items"}

	got, err := selectTables(catalog, []string{"items", "users"})
	if err != nil {
		t.Fatalf("selectTables() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Users", "items"}, got); diff != "" {
		t.Errorf("selectTables() mismatch (-want +got):\n%s", diff)
	}

	if _, err := selectTables(catalog, []string{"orders", "nope"}); err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("selectTables() error = %v, want missing table nope", err)
	}
}
