package docs

import (
	"strings"

	"github.com/tordrt/metamind/internal/formatter"
	"github.com/tordrt/metamind/internal/schema"
)

const promptInstructions = `You are an expert data analyst. Your task is to document the SQL database schema below.

For EVERY table in the schema provide:
- PURPOSE: one sentence describing what the table stores and why it exists.
- COLUMNS: one line per column with a short business description.
- TAGS: 3 to 5 business tags (for example: User Data, Finance, Audit).
- QUALITY CHECKS: 2 or 3 actionable data quality checks.

Reply with one block per table, in the same order as the schema, using exactly this format and nothing else:

TABLE: <table name>
PURPOSE: <one sentence>
COLUMNS:
- <column name>: <description>
TAGS: <tag>, <tag>, <tag>
QUALITY CHECKS:
- <check>
END TABLE
`

// BuildPrompt returns the documentation request for a schema. The result depends
// only on the schema's content, so equal schemas always produce equal prompts.
func BuildPrompt(s *schema.Schema) string {
	var b strings.Builder
	b.WriteString(promptInstructions)
	b.WriteString("\nSchema:\n---\n")
	b.WriteString(formatter.Text(s))
	b.WriteString("---\n")
	return b.String()
}
