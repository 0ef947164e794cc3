package docs

import (
	"context"

	"github.com/tordrt/metamind/internal/schema"
)

// Caller sends one prompt to the model and returns its reply text.
type Caller interface {
	Call(ctx context.Context, prompt, apiKey string) (string, error)
}

// Generate asks the model to document every table of s and parses the reply.
// Gateway errors are returned unchanged; a reply that does not cover the schema
// yields a *ResponseParseError.
func Generate(ctx context.Context, c Caller, s *schema.Schema, apiKey string) ([]Record, error) {
	reply, err := c.Call(ctx, BuildPrompt(s), apiKey)
	if err != nil {
		return nil, err
	}
	return ParseResponseFor(reply, s)
}
