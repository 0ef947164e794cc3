// Package docs builds documentation prompts for a schema and parses the model's
// structured reply into per-table documentation records.
package docs

import "fmt"

// Record is the generated documentation for one table
type Record struct {
	Table         string              `json:"table" yaml:"table"`
	Purpose       string              `json:"purpose" yaml:"purpose"`
	Columns       []ColumnDescription `json:"columns" yaml:"columns"`
	Tags          []string            `json:"tags" yaml:"tags"`
	QualityChecks []string            `json:"quality_checks" yaml:"quality_checks"`
}

// ColumnDescription describes one column of a documented table
type ColumnDescription struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Field names reported by MissingField errors.
const (
	FieldTable         = "table"
	FieldPurpose       = "purpose"
	FieldColumns       = "columns"
	FieldTags          = "tags"
	FieldQualityChecks = "quality_checks"
)

// ParseErrorKind classifies a reply that could not be turned into records.
type ParseErrorKind string

const (
	// MissingField means a table block lacks a required sub-field.
	MissingField ParseErrorKind = "MISSING_FIELD"
	// NoTables means the reply contains no table block at all.
	NoTables ParseErrorKind = "NO_TABLES"
	// DuplicateTable means two blocks document the same table.
	DuplicateTable ParseErrorKind = "DUPLICATE_TABLE"
	// UnknownTable means a block documents a table the schema does not have.
	UnknownTable ParseErrorKind = "UNKNOWN_TABLE"
	// MissingTable means a schema table has no block in the reply.
	MissingTable ParseErrorKind = "MISSING_TABLE"
)

// ResponseParseError reports why a model reply was rejected. No records are
// returned alongside it.
type ResponseParseError struct {
	Kind  ParseErrorKind
	Table string
	Field string
}

func (e *ResponseParseError) Error() string {
	switch e.Kind {
	case MissingField:
		if e.Table == "" {
			return fmt.Sprintf("%s: table block is missing %s", e.Kind, e.Field)
		}
		return fmt.Sprintf("%s: table %s is missing %s", e.Kind, e.Table, e.Field)
	case NoTables:
		return fmt.Sprintf("%s: response contains no TABLE block", e.Kind)
	case DuplicateTable:
		return fmt.Sprintf("%s: table %s is documented more than once", e.Kind, e.Table)
	case UnknownTable:
		return fmt.Sprintf("%s: response documents unknown table %s", e.Kind, e.Table)
	case MissingTable:
		return fmt.Sprintf("%s: response has no documentation for table %s", e.Kind, e.Table)
	default:
		return fmt.Sprintf("%s: table %s", e.Kind, e.Table)
	}
}
