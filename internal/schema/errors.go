package schema

import "fmt"

// ExtractionErrorKind classifies schema extraction failures.
type ExtractionErrorKind string

const (
	// Unreadable indicates the input is not a readable database container.
	Unreadable ExtractionErrorKind = "UNREADABLE"
	// ParseError indicates DDL text without a usable CREATE TABLE statement.
	ParseError ExtractionErrorKind = "PARSE_ERROR"
)

// ExtractionError is returned when an input cannot be turned into a Schema.
// Line and Statement are 1-based locators into DDL text; zero means unknown.
type ExtractionError struct {
	Kind      ExtractionErrorKind
	Message   string
	Line      int
	Statement int
	Err       error
}

func (e *ExtractionError) Error() string {
	msg := e.Message
	if e.Line > 0 || e.Statement > 0 {
		msg = fmt.Sprintf("%s (statement %d, line %d)", msg, e.Statement, e.Line)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewUnreadable builds an Unreadable extraction error.
func NewUnreadable(msg string, err error) *ExtractionError {
	return &ExtractionError{Kind: Unreadable, Message: msg, Err: err}
}

// Diagnostic describes a statement that was skipped while building a schema.
type Diagnostic struct {
	Line      int    `json:"line"`
	Statement int    `json:"statement"`
	Message   string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("statement %d, line %d: %s", d.Statement, d.Line, d.Message)
}
