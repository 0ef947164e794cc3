package ddl

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokenize(t *testing.T) {
	input := "-- leading comment\nCREATE /* block\ncomment */ TABLE \"my \"\"t\"\"\" (`a`, [b c], x DECIMAL(1.5e3), d TEXT DEFAULT 'it''s', e INT[]); # trailing"

	tokens, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}

	type tok struct {
		Kind TokenKind
		Text string
		Line int
	}
	var got []tok
	for _, tk := range tokens {
		got = append(got, tok{tk.Kind, tk.Text, tk.Line})
	}

	want := []tok{
		{TokenWord, "CREATE", 2},
		{TokenWord, "TABLE", 3},
		{TokenQuoted, `my "t"`, 3},
		{TokenPunct, "(", 3},
		{TokenQuoted, "a", 3},
		{TokenPunct, ",", 3},
		{TokenQuoted, "b c", 3},
		{TokenPunct, ",", 3},
		{TokenWord, "x", 3},
		{TokenWord, "DECIMAL", 3},
		{TokenPunct, "(", 3},
		{TokenNumber, "1.5e3", 3},
		{TokenPunct, ")", 3},
		{TokenPunct, ",", 3},
		{TokenWord, "d", 3},
		{TokenWord, "TEXT", 3},
		{TokenWord, "DEFAULT", 3},
		{TokenString, "it's", 3},
		{TokenPunct, ",", 3},
		{TokenWord, "e", 3},
		{TokenWord, "INT", 3},
		{TokenPunct, "[]", 3},
		{TokenPunct, ")", 3},
		{TokenPunct, ";", 3},
		{TokenEOF, "", 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tokenize() mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
		wantLen  int
	}{
		{name: "unterminated string", input: "CREATE\nTABLE 'abc", wantLine: 2, wantLen: 3},
		{name: "unterminated identifier", input: "`abc", wantLine: 1, wantLen: 1},
		{name: "unterminated block comment", input: "CREATE /* never\nclosed", wantLine: 1, wantLen: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			var lexErr *LexError
			if !errors.As(err, &lexErr) {
				t.Fatalf("Tokenize() error = %v, want *LexError", err)
			}
			if lexErr.Line != tt.wantLine {
				t.Errorf("LexError.Line = %d, want %d", lexErr.Line, tt.wantLine)
			}
			if len(tokens) != tt.wantLen {
				t.Errorf("len(tokens) = %d, want %d", len(tokens), tt.wantLen)
			}
			if tokens[len(tokens)-1].Kind != TokenEOF {
				t.Error("expected token stream to end with EOF")
			}
		})
	}
}

func TestParseStatementKinds(t *testing.T) {
	input := `
		SET NAMES utf8;
		CREATE TABLE a (id INT);
		CREATE VIEW v AS SELECT 1;
		CREATE UNIQUE INDEX ix ON a (id);
		DROP TABLE IF EXISTS z;`

	statements, errs := Parse(input)
	if len(errs) != 0 {
		t.Fatalf("Parse() errors = %v", errs)
	}
	if len(statements) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(statements))
	}

	if other, ok := statements[0].(*Other); !ok || other.Keyword != "SET" {
		t.Errorf("statement 1 = %#v, want *Other SET", statements[0])
	}
	if ct, ok := statements[1].(*CreateTable); !ok || ct.Table.Name != "a" {
		t.Errorf("statement 2 = %#v, want *CreateTable a", statements[1])
	}
	if other, ok := statements[2].(*Other); !ok || other.Keyword != "CREATE VIEW" {
		t.Errorf("statement 3 = %#v, want *Other CREATE VIEW", statements[2])
	}
	if ci, ok := statements[3].(*CreateIndex); !ok || ci.TableName != "a" || !ci.Def.IsUnique {
		t.Errorf("statement 4 = %#v, want unique *CreateIndex on a", statements[3])
	}

	for i, stmt := range statements {
		index, line := stmt.Pos()
		if index != i+1 {
			t.Errorf("statement %d has index %d", i+1, index)
		}
		if line != i+2 {
			t.Errorf("statement %d starts on line %d, want %d", i+1, line, i+2)
		}
	}
}

func TestParseKeyColumnName(t *testing.T) {
	statements, errs := Parse("CREATE TABLE kv (key VARCHAR(10) PRIMARY KEY, value TEXT, KEY idx_value (value));")
	if len(errs) != 0 {
		t.Fatalf("Parse() errors = %v", errs)
	}
	ct := statements[0].(*CreateTable)
	if len(ct.Table.Columns) != 2 || ct.Table.Columns[0].Name != "key" {
		t.Errorf("columns = %+v, want key and value", ct.Table.Columns)
	}
	if len(ct.Table.Indexes) != 1 || ct.Table.Indexes[0].Name != "idx_value" {
		t.Errorf("indexes = %+v, want idx_value", ct.Table.Indexes)
	}
}
