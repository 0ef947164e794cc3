package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/metamind/internal/schema"
)

// JSONFormatter writes the canonical schema as indented JSON
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// Format writes the schema as JSON
func (f *JSONFormatter) Format(s *schema.Schema) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode schema as JSON: %w", err)
	}
	return nil
}

// YAMLFormatter writes the canonical schema as YAML
type YAMLFormatter struct {
	writer io.Writer
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(w io.Writer) *YAMLFormatter {
	return &YAMLFormatter{writer: w}
}

// Format writes the schema as YAML
func (f *YAMLFormatter) Format(s *schema.Schema) error {
	enc := yaml.NewEncoder(f.writer)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode schema as YAML: %w", err)
	}
	return enc.Close()
}
