package ddl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tordrt/metamind/internal/schema"
)

// Parse tokenizes DDL text and parses it statement by statement.
//
// Statements the parser does not interpret come back as *Other. A CREATE TABLE or
// CREATE INDEX statement that cannot be parsed is reported as a *SyntaxError and
// parsing continues with the next statement.
func Parse(input string) ([]Statement, []*SyntaxError) {
	tokens, lexErr := Tokenize(input)

	var statements []Statement
	var syntaxErrors []*SyntaxError

	chunks := splitStatements(tokens, lexErr != nil)
	for i, chunk := range chunks {
		index := i + 1
		last := i == len(chunks)-1

		if lexErr != nil && last {
			var le *LexError
			line := chunk[0].Line
			msg := lexErr.Error()
			if errors.As(lexErr, &le) {
				line, msg = le.Line, le.Msg
			}
			syntaxErrors = append(syntaxErrors, &SyntaxError{Statement: index, Line: line, Msg: msg})
			continue
		}

		p := &parser{toks: chunk, index: index}
		stmt, err := p.statement()
		if err != nil {
			syntaxErrors = append(syntaxErrors, err)
			continue
		}
		statements = append(statements, stmt)
	}

	return statements, syntaxErrors
}

// splitStatements cuts the token stream at semicolons. Every chunk is
// non-empty and terminated by an EOF token carrying the line where it ends. With
// keepTail an empty final chunk is kept so a lexing failure at the very end still
// has a statement to be reported against.
func splitStatements(tokens []Token, keepTail bool) [][]Token {
	var chunks [][]Token
	var current []Token
	for _, tok := range tokens {
		if tok.Kind == TokenEOF || tok.isPunct(";") {
			if len(current) > 0 || (tok.Kind == TokenEOF && keepTail) {
				current = append(current, Token{Kind: TokenEOF, Line: tok.Line})
				chunks = append(chunks, current)
			}
			current = nil
			continue
		}
		current = append(current, tok)
	}
	return chunks
}

type parser struct {
	toks  []Token
	pos   int
	index int
}

func (p *parser) peek() Token { return p.peekAt(0) }

func (p *parser) peekAt(n int) Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() Token {
	t := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) accept(kw string) bool {
	if p.peek().isKeyword(kw) {
		p.next()
		return true
	}
	return false
}

// acceptSeq consumes the keywords only if all of them are next, in order.
func (p *parser) acceptSeq(kws ...string) bool {
	for i, kw := range kws {
		if !p.peekAt(i).isKeyword(kw) {
			return false
		}
	}
	p.pos += len(kws)
	return true
}

func (p *parser) acceptPunct(s string) bool {
	if p.peek().isPunct(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Statement: p.index, Line: p.peek().Line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kw string) *SyntaxError {
	if !p.accept(kw) {
		return p.errorf("expected %s but found %s", kw, p.peek())
	}
	return nil
}

func (p *parser) expectPunct(s string) *SyntaxError {
	if !p.acceptPunct(s) {
		return p.errorf("expected %q but found %s", s, p.peek())
	}
	return nil
}

func (p *parser) atElementEnd() bool {
	t := p.peek()
	return t.Kind == TokenEOF || t.isPunct(",") || t.isPunct(")")
}

func (p *parser) identifier(what string) (string, *SyntaxError) {
	t := p.peek()
	if t.Kind != TokenWord && t.Kind != TokenQuoted {
		return "", p.errorf("expected %s but found %s", what, t)
	}
	p.next()
	return t.Text, nil
}

// qualifiedName reads a possibly schema-qualified name and returns its last part.
func (p *parser) qualifiedName(what string) (string, *SyntaxError) {
	name, err := p.identifier(what)
	if err != nil {
		return "", err
	}
	for p.peek().isPunct(".") {
		p.next()
		if name, err = p.identifier(what); err != nil {
			return "", err
		}
	}
	return name, nil
}

// group consumes a balanced parenthesized group and returns its compact source text.
func (p *parser) group() (string, *SyntaxError) {
	if err := p.expectPunct("("); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteByte('(')
	depth := 1
	var prev Token
	for depth > 0 {
		t := p.next()
		switch {
		case t.Kind == TokenEOF:
			return "", p.errorf("unbalanced parentheses")
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
		}
		if needsSpace(prev, t) {
			b.WriteByte(' ')
		}
		b.WriteString(t.Raw)
		prev = t
	}
	return b.String(), nil
}

func needsSpace(prev, cur Token) bool {
	wordish := func(t Token) bool {
		return t.Kind == TokenWord || t.Kind == TokenQuoted || t.Kind == TokenNumber || t.Kind == TokenString
	}
	return wordish(prev) && wordish(cur)
}

// identList reads "(a, b DESC, c(10))" and returns the leading identifier of each element.
func (p *parser) identList() ([]string, *SyntaxError) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var names []string
	for {
		name, err := p.identifier("column name")
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if err := p.skipToElementEnd(); err != nil {
			return nil, err
		}
		if p.acceptPunct(",") {
			continue
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return names, nil
	}
}

func (p *parser) skipToElementEnd() *SyntaxError {
	for !p.atElementEnd() {
		if p.peek().isPunct("(") {
			if _, err := p.group(); err != nil {
				return err
			}
			continue
		}
		p.next()
	}
	return nil
}

func (p *parser) statement() (Statement, *SyntaxError) {
	first := p.peek()
	if first.Kind == TokenEOF {
		return nil, p.errorf("empty statement")
	}
	if !p.accept("CREATE") {
		return &Other{Index: p.index, Line: first.Line, Keyword: strings.ToUpper(first.Text)}, nil
	}

	p.acceptSeq("OR", "REPLACE")
	for p.accept("GLOBAL") || p.accept("LOCAL") || p.accept("TEMP") || p.accept("TEMPORARY") || p.accept("UNLOGGED") {
	}

	if p.accept("TABLE") {
		table, err := p.createTable()
		if err != nil {
			return nil, err
		}
		return &CreateTable{Index: p.index, Line: first.Line, Table: *table}, nil
	}

	unique := p.accept("UNIQUE")
	for p.accept("CLUSTERED") || p.accept("NONCLUSTERED") {
	}
	if p.accept("INDEX") {
		return p.createIndex(first.Line, unique)
	}

	return &Other{Index: p.index, Line: first.Line, Keyword: "CREATE " + strings.ToUpper(p.peek().Text)}, nil
}

// tableBuilder collects a CREATE TABLE body before single-column UNIQUE
// constraints are folded into the column definitions.
type tableBuilder struct {
	table   schema.Table
	uniques [][]string
}

func (p *parser) createTable() (*schema.Table, *SyntaxError) {
	p.acceptSeq("IF", "NOT", "EXISTS")

	name, err := p.qualifiedName("table name")
	if err != nil {
		return nil, err
	}
	if p.peek().isKeyword("AS") {
		return nil, p.errorf("table %s has no column list (CREATE TABLE ... AS is not supported)", name)
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}

	b := &tableBuilder{table: schema.Table{Name: name}}
	for {
		if p.peek().isPunct(")") && len(b.table.Columns) == 0 {
			return nil, p.errorf("table %s declares no columns", name)
		}

		var err *SyntaxError
		if p.isTableConstraint() {
			err = p.tableConstraint(b)
		} else {
			err = p.columnDef(b)
		}
		if err != nil {
			return nil, err
		}

		if p.acceptPunct(",") {
			continue
		}
		if p.acceptPunct(")") {
			break
		}
		return nil, p.errorf("expected \",\" or \")\" in table %s but found %s", name, p.peek())
	}

	if len(b.table.Columns) == 0 {
		return nil, p.errorf("table %s declares no columns", name)
	}

	for _, cols := range b.uniques {
		if col := b.table.Column(cols[0]); col != nil {
			col.IsUnique = true
		}
	}
	// Anything after the closing parenthesis is table options (ENGINE=..., WITHOUT ROWID, STRICT).
	return &b.table, nil
}

func (p *parser) isTableConstraint() bool {
	t := p.peek()
	if t.Kind != TokenWord {
		return false
	}
	switch strings.ToUpper(t.Text) {
	case "CONSTRAINT", "CHECK", "EXCLUDE", "UNIQUE", "FULLTEXT", "SPATIAL":
		return true
	case "PRIMARY", "FOREIGN":
		return p.peekAt(1).isKeyword("KEY")
	case "KEY", "INDEX":
		// "KEY idx (col)" versus a column named key: "key VARCHAR(10)".
		next := p.peekAt(1)
		if next.isPunct("(") || next.isKeyword("USING") {
			return true
		}
		if next.Kind != TokenWord && next.Kind != TokenQuoted {
			return false
		}
		if p.peekAt(2).isKeyword("USING") {
			return true
		}
		if p.peekAt(2).isPunct("(") {
			return p.peekAt(3).Kind != TokenNumber
		}
	}
	return false
}

// indexHeader skips an optional index name and USING clause before a column list.
func (p *parser) indexHeader() string {
	name := ""
	for !p.atElementEnd() && !p.peek().isPunct("(") {
		t := p.next()
		if t.isKeyword("USING") {
			p.next()
			continue
		}
		if name == "" {
			name = t.Text
		}
	}
	return name
}

func (p *parser) tableConstraint(b *tableBuilder) *SyntaxError {
	constraintName := ""
	if p.accept("CONSTRAINT") {
		if !p.isTableConstraint() {
			name, err := p.identifier("constraint name")
			if err != nil {
				return err
			}
			constraintName = name
		}
	}

	switch {
	case p.acceptSeq("PRIMARY", "KEY"):
		p.indexHeader()
		cols, err := p.identList()
		if err != nil {
			return err
		}
		b.table.PrimaryKey = appendMissing(b.table.PrimaryKey, cols...)

	case p.acceptSeq("FOREIGN", "KEY"):
		p.indexHeader()
		cols, err := p.identList()
		if err != nil {
			return err
		}
		if err := p.expect("REFERENCES"); err != nil {
			return err
		}
		fk, err := p.references(cols)
		if err != nil {
			return err
		}
		b.table.ForeignKeys = append(b.table.ForeignKeys, fk)

	case p.accept("UNIQUE"):
		_ = p.accept("KEY") || p.accept("INDEX")
		name := p.indexHeader()
		cols, err := p.identList()
		if err != nil {
			return err
		}
		if len(cols) == 1 {
			b.uniques = append(b.uniques, cols)
		} else {
			if name == "" {
				name = constraintName
			}
			b.table.Indexes = append(b.table.Indexes, schema.Index{Name: name, Columns: cols, IsUnique: true})
		}

	case p.accept("CHECK"):
		if _, err := p.group(); err != nil {
			return err
		}

	case p.accept("FULLTEXT"), p.accept("SPATIAL"), p.peek().isKeyword("KEY"), p.peek().isKeyword("INDEX"):
		_ = p.accept("KEY") || p.accept("INDEX")
		name := p.indexHeader()
		cols, err := p.identList()
		if err != nil {
			return err
		}
		b.table.Indexes = append(b.table.Indexes, schema.Index{Name: name, Columns: cols})

	case p.accept("EXCLUDE"):

	default:
		return p.errorf("unsupported table constraint %s", p.peek())
	}

	return p.skipToElementEnd()
}

func (p *parser) columnDef(b *tableBuilder) *SyntaxError {
	name, err := p.identifier("column name")
	if err != nil {
		return err
	}
	col := schema.Column{Name: name, Nullable: true}

	typ, err := p.columnType()
	if err != nil {
		return err
	}
	col.Type = typ

	for !p.atElementEnd() {
		switch {
		case p.accept("CONSTRAINT"):
			if !p.atElementEnd() && !p.isColumnConstraintStart() {
				p.next()
			}
		case p.acceptSeq("PRIMARY", "KEY"), p.accept("KEY"):
			b.table.PrimaryKey = appendMissing(b.table.PrimaryKey, name)
		case p.acceptSeq("NOT", "NULL"):
			col.Nullable = false
		case p.accept("NOT"):
			p.next()
		case p.accept("NULL"):
			col.Nullable = true
		case p.accept("UNIQUE"):
			col.IsUnique = true
			p.accept("KEY")
		case p.accept("DEFAULT"):
			value, err := p.expression()
			if err != nil {
				return err
			}
			col.DefaultValue = &value
		case p.accept("REFERENCES"):
			fk, err := p.references([]string{name})
			if err != nil {
				return err
			}
			b.table.ForeignKeys = append(b.table.ForeignKeys, fk)
		case p.accept("ON"):
			if p.accept("UPDATE") {
				if _, err := p.expression(); err != nil {
					return err
				}
			} else {
				p.next()
			}
		case p.acceptSeq("CHARACTER", "SET"), p.accept("CHARSET"), p.accept("COLLATE"), p.accept("COMMENT"):
			p.next()
		case p.peek().isPunct("("):
			if _, err := p.group(); err != nil {
				return err
			}
		default:
			// AUTOINCREMENT, GENERATED ... AS (...), IDENTITY, ASC/DESC, STORED, ...
			p.next()
		}
	}

	b.table.Columns = append(b.table.Columns, col)
	return nil
}

var columnConstraintWords = map[string]bool{
	"CONSTRAINT": true, "PRIMARY": true, "NOT": true, "NULL": true, "UNIQUE": true,
	"DEFAULT": true, "REFERENCES": true, "CHECK": true, "COLLATE": true, "AUTOINCREMENT": true,
	"AUTO_INCREMENT": true, "COMMENT": true, "GENERATED": true, "AS": true, "IDENTITY": true,
	"CHARSET": true, "ON": true, "KEY": true, "VISIBLE": true, "INVISIBLE": true,
}

func (p *parser) isColumnConstraintStart() bool {
	t := p.peek()
	if t.Kind != TokenWord {
		return false
	}
	upper := strings.ToUpper(t.Text)
	if upper == "CHARACTER" {
		return p.peekAt(1).isKeyword("SET")
	}
	return columnConstraintWords[upper]
}

// columnType reads the declared type up to the first constraint. An empty type is
// allowed (SQLite accepts untyped columns).
func (p *parser) columnType() (string, *SyntaxError) {
	var b strings.Builder
	joinNext := false
	for !p.atElementEnd() && !p.isColumnConstraintStart() {
		t := p.peek()
		switch {
		case t.isPunct("("):
			g, err := p.group()
			if err != nil {
				return "", err
			}
			b.WriteString(g)
		case t.isPunct("[]"):
			p.next()
			b.WriteString("[]")
		case t.isPunct("."):
			p.next()
			b.WriteByte('.')
			joinNext = true
			continue
		case t.Kind == TokenWord || t.Kind == TokenQuoted || t.Kind == TokenNumber:
			p.next()
			if b.Len() > 0 && !joinNext {
				b.WriteByte(' ')
			}
			b.WriteString(t.Text)
		default:
			// Leave anything else to the constraint loop.
			return schema.NormalizeType(b.String()), nil
		}
		joinNext = false
	}
	return schema.NormalizeType(b.String()), nil
}

// expression reads a DEFAULT / ON UPDATE value: a literal, a word, a function call or a
// parenthesized expression, optionally followed by PostgreSQL "::type" casts.
func (p *parser) expression() (string, *SyntaxError) {
	if p.peek().isPunct("(") {
		return p.group()
	}

	var b strings.Builder
	if t := p.peek(); t.isPunct("-") || t.isPunct("+") {
		b.WriteString(p.next().Raw)
	}
	t := p.peek()
	if t.Kind == TokenEOF || t.Kind == TokenPunct {
		return "", p.errorf("expected a value but found %s", t)
	}
	b.WriteString(p.next().Raw)

	if p.peek().isPunct("(") {
		g, err := p.group()
		if err != nil {
			return "", err
		}
		b.WriteString(g)
	}

	for p.peek().isPunct(":") && p.peekAt(1).isPunct(":") {
		p.next()
		p.next()
		typ, err := p.identifier("type name")
		if err != nil {
			return "", err
		}
		b.WriteString("::" + typ)
	}
	return b.String(), nil
}

// references reads the part after REFERENCES: a table, optional columns and actions.
func (p *parser) references(cols []string) (schema.ForeignKey, *SyntaxError) {
	refTable, err := p.qualifiedName("referenced table")
	if err != nil {
		return schema.ForeignKey{}, err
	}
	fk := schema.ForeignKey{Columns: cols, RefTable: refTable}
	if p.peek().isPunct("(") {
		if fk.RefColumns, err = p.identList(); err != nil {
			return schema.ForeignKey{}, err
		}
	}

	for {
		switch {
		case p.accept("ON"):
			p.next() // DELETE | UPDATE
			_ = p.accept("SET") || p.accept("NO")
			p.next()
		case p.accept("MATCH"), p.accept("INITIALLY"):
			p.next()
		case p.accept("DEFERRABLE"), p.acceptSeq("NOT", "DEFERRABLE"):
		default:
			return fk, nil
		}
	}
}

func (p *parser) createIndex(line int, unique bool) (Statement, *SyntaxError) {
	p.accept("CONCURRENTLY")
	p.acceptSeq("IF", "NOT", "EXISTS")

	name := ""
	if !p.peek().isKeyword("ON") {
		n, err := p.qualifiedName("index name")
		if err != nil {
			return nil, err
		}
		name = n
	}
	if err := p.expect("ON"); err != nil {
		return nil, err
	}
	p.accept("ONLY")

	table, err := p.qualifiedName("table name")
	if err != nil {
		return nil, err
	}
	if p.accept("USING") {
		p.next()
	}
	cols, err := p.identList()
	if err != nil {
		return nil, err
	}

	return &CreateIndex{
		Index:     p.index,
		Line:      line,
		TableName: table,
		Def:       schema.Index{Name: name, Columns: cols, IsUnique: unique},
	}, nil
}

func appendMissing(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if strings.EqualFold(existing, item) {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}
