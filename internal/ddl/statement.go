package ddl

import (
	"fmt"

	"github.com/tordrt/metamind/internal/schema"
)

// Statement is one parsed DDL statement: *CreateTable, *CreateIndex or *Other.
type Statement interface {
	// Pos returns the 1-based statement index and the line it starts on.
	Pos() (index, line int)
}

// CreateTable is a parsed CREATE TABLE statement
type CreateTable struct {
	Index int
	Line  int
	Table schema.Table
}

// CreateIndex is a parsed CREATE INDEX statement
type CreateIndex struct {
	Index     int
	Line      int
	TableName string
	Def       schema.Index
}

// Other is any statement the parser does not interpret (INSERT, ALTER, SET, ...).
type Other struct {
	Index   int
	Line    int
	Keyword string
}

func (s *CreateTable) Pos() (int, int) { return s.Index, s.Line }
func (s *CreateIndex) Pos() (int, int) { return s.Index, s.Line }
func (s *Other) Pos() (int, int)       { return s.Index, s.Line }

// SyntaxError reports a statement the parser recognized but could not parse.
type SyntaxError struct {
	Statement int
	Line      int
	Msg       string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("statement %d, line %d: %s", e.Statement, e.Line, e.Msg)
}
