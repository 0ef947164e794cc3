package schema

import (
	"strings"
	"unicode"
)

// NormalizeType returns the dialect-agnostic form of a declared column type:
// keywords upper-cased, runs of whitespace collapsed to one space, and no spaces
// inside parameter lists. Quoted literals (e.g. ENUM values) are kept verbatim.
//
//	"varchar ( 255 )"     -> "VARCHAR(255)"
//	"decimal(10, 2)"      -> "DECIMAL(10,2)"
//	"double   precision"  -> "DOUBLE PRECISION"
func NormalizeType(raw string) string {
	var b strings.Builder
	var quote rune
	pendingSpace := false

	for _, r := range strings.TrimSpace(raw) {
		if quote != 0 {
			b.WriteRune(r)
			if r == quote {
				quote = 0
			}
			continue
		}

		switch {
		case r == '\'' || r == '"':
			flushSpace(&b, &pendingSpace)
			quote = r
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		case r == '(' || r == ')' || r == ',':
			pendingSpace = false
			b.WriteRune(r)
		default:
			if pendingSpace && !endsWithAny(&b, "(,") {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

func flushSpace(b *strings.Builder, pending *bool) {
	if *pending && b.Len() > 0 && !endsWithAny(b, "(,") {
		b.WriteByte(' ')
	}
	*pending = false
}

func endsWithAny(b *strings.Builder, chars string) bool {
	s := b.String()
	if s == "" {
		return true
	}
	return strings.ContainsRune(chars, rune(s[len(s)-1]))
}

// Normalize applies the canonical-model rules to a table in place: column types are
// normalized and primary-key columns are never nullable.
func (t *Table) Normalize() {
	for i := range t.Columns {
		t.Columns[i].Type = NormalizeType(t.Columns[i].Type)
		if t.IsPrimaryKey(t.Columns[i].Name) {
			t.Columns[i].Nullable = false
		}
	}
}
