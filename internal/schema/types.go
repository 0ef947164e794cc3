package schema

import (
	"fmt"
	"strings"
)

// Schema represents a complete canonical schema, independent of the input it came from.
// A Schema is built once per input and treated as read-only afterwards.
type Schema struct {
	Tables []Table `json:"tables" yaml:"tables"`
}

// Table represents a database table
type Table struct {
	Name        string       `json:"name" yaml:"name"`
	Columns     []Column     `json:"columns" yaml:"columns"`
	PrimaryKey  []string     `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
	Indexes     []Index      `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	SampleRows  [][]string   `json:"sample_rows,omitempty" yaml:"sample_rows,omitempty"`
}

// Column represents a table column
type Column struct {
	Name         string  `json:"name" yaml:"name"`
	Type         string  `json:"type" yaml:"type"`
	Nullable     bool    `json:"nullable" yaml:"nullable"`
	DefaultValue *string `json:"default,omitempty" yaml:"default,omitempty"`
	IsUnique     bool    `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// ForeignKey represents a foreign key reference. Columns[i] references RefColumns[i];
// RefColumns may be empty when the reference targets the other table's primary key.
type ForeignKey struct {
	Columns    []string `json:"columns" yaml:"columns"`
	RefTable   string   `json:"ref_table" yaml:"ref_table"`
	RefColumns []string `json:"ref_columns,omitempty" yaml:"ref_columns,omitempty"`
}

// Index represents a database index
type Index struct {
	Name     string   `json:"name" yaml:"name"`
	Columns  []string `json:"columns" yaml:"columns"`
	IsUnique bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// Table returns the table with the given name (case-insensitive), or nil.
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i]
		}
	}
	return nil
}

// TableNames returns table names in schema order.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// Validate checks the schema invariants: at least one table and unique table names.
func (s *Schema) Validate() error {
	if s == nil || len(s.Tables) == 0 {
		return fmt.Errorf("schema has no tables")
	}
	seen := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		key := strings.ToLower(t.Name)
		if seen[key] {
			return fmt.Errorf("duplicate table %q", t.Name)
		}
		seen[key] = true
	}
	return nil
}

// Column returns the column with the given name (case-insensitive), or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// IsPrimaryKey reports whether the column is part of the table's primary key.
func (t *Table) IsPrimaryKey(column string) bool {
	for _, pk := range t.PrimaryKey {
		if strings.EqualFold(pk, column) {
			return true
		}
	}
	return false
}

// Filter keeps only the requested tables (if any) and drops the excluded ones.
// Matching is case-insensitive and schema order is preserved.
func (s *Schema) Filter(include, exclude []string) {
	includeSet := toSet(include)
	excludeSet := toSet(exclude)

	filtered := make([]Table, 0, len(s.Tables))
	for _, table := range s.Tables {
		key := strings.ToLower(table.Name)
		if len(includeSet) > 0 && !includeSet[key] {
			continue
		}
		if excludeSet[key] {
			continue
		}
		filtered = append(filtered, table)
	}
	s.Tables = filtered
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			set[strings.ToLower(n)] = true
		}
	}
	return set
}
