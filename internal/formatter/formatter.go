// Package formatter renders canonical schemas as text, markdown, JSON or YAML.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/metamind/internal/schema"
)

// Output format names accepted by New.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// Formatter writes a schema to its destination
type Formatter interface {
	Format(s *schema.Schema) error
}

// New returns the single-stream formatter for the named format
func New(format string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(format) {
	case FormatText, "txt":
		return NewTextFormatter(w), nil
	case FormatMarkdown, "md":
		return NewMarkdownFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w), nil
	case FormatYAML, "yml":
		return NewYAMLFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format %q (use text, markdown, json or yaml)", format)
	}
}
