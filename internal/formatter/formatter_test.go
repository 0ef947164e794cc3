package formatter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tordrt/metamind/internal/schema"
)

func testSchema() *schema.Schema {
	zero := "0"
	return &schema.Schema{Tables: []schema.Table{
		{
			Name: "users",
			Columns: []schema.Column{
				{Name: "id", Type: "INT"},
				{Name: "email", Type: "VARCHAR(255)", IsUnique: true},
			},
			PrimaryKey: []string{"id"},
			SampleRows: [][]string{{"1", "a@example.com"}},
		},
		{
			Name: "orders",
			Columns: []schema.Column{
				{Name: "id", Type: "INT"},
				{Name: "user_id", Type: "INT"},
				{Name: "total", Type: "DECIMAL(10,2)", Nullable: true, DefaultValue: &zero},
			},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []schema.ForeignKey{{Columns: []string{"user_id"}, RefTable: "users", RefColumns: []string{"id"}}},
			Indexes:     []schema.Index{{Name: "idx_orders_user", Columns: []string{"user_id"}}},
		},
	}}
}

func TestTextFormatter(t *testing.T) {
	want := `TABLE users (PK: id)
  id: INT NOT NULL
  email: VARCHAR(255) UNIQUE NOT NULL

  SAMPLE ROWS (id | email):
    1 | a@example.com

TABLE orders (PK: id)
  id: INT NOT NULL
  user_id: INT NOT NULL
  total: DECIMAL(10,2) DEFAULT 0

  FOREIGN KEYS:
    user_id → users(id)

  INDEXES:
    idx_orders_user (user_id)
`
	if diff := cmp.Diff(want, Text(testSchema())); diff != "" {
		t.Errorf("Text() mismatch (-want +got):\n%s", diff)
	}
}

func TestTextFormatterDeterministic(t *testing.T) {
	if Text(testSchema()) != Text(testSchema()) {
		t.Error("Text() is not deterministic")
	}
}

func TestFormatForeignKey(t *testing.T) {
	tests := []struct {
		fk   schema.ForeignKey
		want string
	}{
		{schema.ForeignKey{Columns: []string{"author_id"}, RefTable: "users"}, "author_id → users"},
		{schema.ForeignKey{Columns: []string{"a", "b"}, RefTable: "t", RefColumns: []string{"x", "y"}}, "a, b → t(x, y)"},
	}
	for _, tt := range tests {
		if got := formatForeignKey(tt.fk); got != tt.want {
			t.Errorf("formatForeignKey() = %q, want %q", got, tt.want)
		}
	}
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewMarkdownFormatter(&buf).Format(testSchema()); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Database Schema",
		"## users",
		"- **id:** INT, PK, NOT NULL",
		"- **email:** VARCHAR(255), UNIQUE, NOT NULL",
		"- **total:** DECIMAL(10,2), DEFAULT 0",
		"### References\n\n- user_id → users(id)",
		"### Referenced by\n\n- orders.user_id",
		"- idx_orders_user on (user_id)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q\n%s", want, out)
		}
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"text", "markdown", "md", "json", "yaml", "YML"} {
		if _, err := New(format, &bytes.Buffer{}); err != nil {
			t.Errorf("New(%q) error = %v", format, err)
		}
	}
	if _, err := New("xml", &bytes.Buffer{}); err == nil {
		t.Error("New(xml) should fail")
	}
}

func TestStructuredFormatters(t *testing.T) {
	var jsonBuf, yamlBuf bytes.Buffer
	if err := NewJSONFormatter(&jsonBuf).Format(testSchema()); err != nil {
		t.Fatalf("JSON Format() error = %v", err)
	}
	if err := NewYAMLFormatter(&yamlBuf).Format(testSchema()); err != nil {
		t.Fatalf("YAML Format() error = %v", err)
	}

	if !strings.Contains(jsonBuf.String(), `"primary_key": [`) || !strings.Contains(jsonBuf.String(), `"ref_table": "users"`) {
		t.Errorf("unexpected JSON output:\n%s", jsonBuf.String())
	}
	if !strings.Contains(yamlBuf.String(), "ref_table: users") || !strings.Contains(yamlBuf.String(), "- name: orders") {
		t.Errorf("unexpected YAML output:\n%s", yamlBuf.String())
	}
}

func TestMultiFileFormatter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "schema")
	s := testSchema()
	s.Tables = append(s.Tables, schema.Table{Name: "order items", Columns: []schema.Column{{Name: "id", Type: "INT"}}})

	if err := NewMultiFileFormatter(dir, FormatMarkdown).Format(s); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if diff := cmp.Diff([]string{"_overview.md", "order_items.md", "orders.md", "users.md"}, names); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}

	overview, err := os.ReadFile(filepath.Join(dir, "_overview.md"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(overview), "- **orders** (references: users)") {
		t.Errorf("overview missing references:\n%s", overview)
	}

	users, err := os.ReadFile(filepath.Join(dir, "users.md"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(users), "## users\n\n### Columns") {
		t.Errorf("unexpected users file:\n%s", users)
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"users":       "users",
		"order items": "order_items",
		"a/b":         "a_b",
		"_overview":   "table__overview",
		"":            "table_",
	}
	for in, want := range tests {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}
