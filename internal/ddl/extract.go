package ddl

import (
	"fmt"

	"github.com/tordrt/metamind/internal/schema"
)

// Extract builds a canonical schema from DDL text.
//
// CREATE TABLE statements become tables in statement order and CREATE INDEX
// statements are attached to their table. Statements that could not be parsed,
// and indexes on unknown tables, are returned as diagnostics as long as at least
// one table was recognized. Otherwise a ParseError locating the first malformed
// statement is returned.
func Extract(input string) (*schema.Schema, []schema.Diagnostic, error) {
	statements, syntaxErrors := Parse(input)

	var diagnostics []schema.Diagnostic
	for _, se := range syntaxErrors {
		diagnostics = append(diagnostics, schema.Diagnostic{Line: se.Line, Statement: se.Statement, Message: se.Msg})
	}

	s := &schema.Schema{}
	var indexes []*CreateIndex
	for _, stmt := range statements {
		switch st := stmt.(type) {
		case *CreateTable:
			if existing := s.Table(st.Table.Name); existing != nil {
				return nil, nil, &schema.ExtractionError{
					Kind:      schema.ParseError,
					Message:   fmt.Sprintf("table %q is defined more than once", st.Table.Name),
					Line:      st.Line,
					Statement: st.Index,
				}
			}
			s.Tables = append(s.Tables, st.Table)
		case *CreateIndex:
			indexes = append(indexes, st)
		}
	}

	if len(s.Tables) == 0 {
		return nil, nil, noTablesError(syntaxErrors)
	}

	for _, ci := range indexes {
		table := s.Table(ci.TableName)
		if table == nil {
			diagnostics = append(diagnostics, schema.Diagnostic{
				Line:      ci.Line,
				Statement: ci.Index,
				Message:   fmt.Sprintf("index %s references unknown table %s", ci.Def.Name, ci.TableName),
			})
			continue
		}
		if ci.Def.IsUnique && len(ci.Def.Columns) == 1 {
			if col := table.Column(ci.Def.Columns[0]); col != nil {
				col.IsUnique = true
			}
		}
		table.Indexes = append(table.Indexes, ci.Def)
	}

	for i := range s.Tables {
		s.Tables[i].Normalize()
	}

	return s, diagnostics, nil
}

func noTablesError(syntaxErrors []*SyntaxError) *schema.ExtractionError {
	if len(syntaxErrors) == 0 {
		return &schema.ExtractionError{
			Kind:      schema.ParseError,
			Message:   "no CREATE TABLE statement found",
			Line:      1,
			Statement: 1,
		}
	}

	first := syntaxErrors[0]
	msg := "no valid CREATE TABLE statement found"
	if len(syntaxErrors) > 1 {
		msg = fmt.Sprintf("%s; %d statements could not be parsed", msg, len(syntaxErrors))
	}
	return &schema.ExtractionError{
		Kind:      schema.ParseError,
		Message:   msg,
		Line:      first.Line,
		Statement: first.Statement,
		Err:       first,
	}
}
