package ddl

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenKind identifies the lexical class of a token
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenWord
	TokenQuoted
	TokenString
	TokenNumber
	TokenPunct
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of input"
	case TokenWord:
		return "word"
	case TokenQuoted:
		return "quoted identifier"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenPunct:
		return "punctuation"
	default:
		return "unknown"
	}
}

// Token is a lexical token. Text holds the unquoted value; Raw holds the source spelling.
type Token struct {
	Kind TokenKind
	Text string
	Raw  string
	Line int
}

// isKeyword reports whether the token is the unquoted word kw (case-insensitive).
func (t Token) isKeyword(kw string) bool {
	return t.Kind == TokenWord && strings.EqualFold(t.Text, kw)
}

func (t Token) isPunct(p string) bool {
	return t.Kind == TokenPunct && t.Text == p
}

func (t Token) String() string {
	if t.Kind == TokenEOF {
		return t.Kind.String()
	}
	return fmt.Sprintf("%q", t.Raw)
}

// Tokenize splits DDL text into tokens. Comments (--, #, /* */) are dropped.
// Identifiers may be quoted with double quotes, backticks or square brackets.
//
// The returned slice always ends with a TokenEOF. On an unterminated quote or
// comment it holds the tokens read so far and a *LexError is returned with it.
func Tokenize(input string) ([]Token, error) {
	l := &lexer{src: []rune(input), line: 1}
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			tokens = append(tokens, Token{Kind: TokenEOF, Line: l.line})
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

type lexer struct {
	src  []rune
	pos  int
	line int
}

// LexError reports an unterminated quote or comment.
type LexError struct {
	Line int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (l *lexer) peekRune(offset int) rune {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		r := l.peekRune(0)
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '-' && l.peekRune(1) == '-', r == '#':
			for l.pos < len(l.src) && l.peekRune(0) != '\n' {
				l.advance()
			}
		case r == '/' && l.peekRune(1) == '*':
			start := l.line
			l.advance()
			l.advance()
			for {
				if l.pos >= len(l.src) {
					return &LexError{Line: start, Msg: "unterminated block comment"}
				}
				if l.peekRune(0) == '*' && l.peekRune(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() (Token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return Token{}, err
	}
	if l.pos >= len(l.src) {
		return Token{Kind: TokenEOF, Line: l.line}, nil
	}

	line := l.line
	start := l.pos
	r := l.peekRune(0)

	switch {
	case r == '"' || r == '`':
		text, err := l.quoted(r, r)
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: TokenQuoted, Text: text, Raw: string(l.src[start:l.pos]), Line: line}, nil

	case r == '[':
		if l.peekRune(1) == ']' {
			l.advance()
			l.advance()
			return Token{Kind: TokenPunct, Text: "[]", Raw: "[]", Line: line}, nil
		}
		text, err := l.quoted('[', ']')
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: TokenQuoted, Text: text, Raw: string(l.src[start:l.pos]), Line: line}, nil

	case r == '\'':
		text, err := l.quoted('\'', '\'')
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: TokenString, Text: text, Raw: string(l.src[start:l.pos]), Line: line}, nil

	case unicode.IsDigit(r) || (r == '.' && unicode.IsDigit(l.peekRune(1))):
		for l.pos < len(l.src) {
			c := l.peekRune(0)
			if unicode.IsDigit(c) || c == '.' {
				l.advance()
				continue
			}
			if (c == 'e' || c == 'E') && (unicode.IsDigit(l.peekRune(1)) || l.peekRune(1) == '-' || l.peekRune(1) == '+') {
				l.advance()
				l.advance()
				continue
			}
			break
		}
		raw := string(l.src[start:l.pos])
		return Token{Kind: TokenNumber, Text: raw, Raw: raw, Line: line}, nil

	case isIdentRune(r):
		for l.pos < len(l.src) && isIdentRune(l.peekRune(0)) {
			l.advance()
		}
		raw := string(l.src[start:l.pos])
		return Token{Kind: TokenWord, Text: raw, Raw: raw, Line: line}, nil
	}

	l.advance()
	raw := string(r)
	return Token{Kind: TokenPunct, Text: raw, Raw: raw, Line: line}, nil
}

// quoted consumes a quoted run. A doubled closing quote is an escaped quote.
func (l *lexer) quoted(open, closing rune) (string, error) {
	startLine := l.line
	l.advance() // opening quote
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return "", &LexError{Line: startLine, Msg: fmt.Sprintf("unterminated %c quote", open)}
		}
		r := l.advance()
		if r == closing {
			if l.peekRune(0) == closing && open == closing {
				b.WriteRune(l.advance())
				continue
			}
			return b.String(), nil
		}
		if r == '\\' && open == '\'' && l.pos < len(l.src) {
			// MySQL-style escapes inside string literals.
			b.WriteRune(r)
			b.WriteRune(l.advance())
			continue
		}
		b.WriteRune(r)
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
