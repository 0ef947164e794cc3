package docs

import (
	"regexp"
	"strings"

	"github.com/tordrt/metamind/internal/schema"
)

type section int

const (
	sectionNone section = iota
	sectionTable
	sectionEnd
	sectionPurpose
	sectionColumns
	sectionTags
	sectionQualityChecks
)

// headerAliases maps a normalized header key to its section. The long forms are
// the headings models tend to use when they drift from the requested format.
var headerAliases = map[string]section{
	"table":                         sectionTable,
	"table name":                    sectionTable,
	"purpose":                       sectionPurpose,
	"table purpose":                 sectionPurpose,
	"columns":                       sectionColumns,
	"column descriptions":           sectionColumns,
	"column description":            sectionColumns,
	"tags":                          sectionTags,
	"business tags":                 sectionTags,
	"quality checks":                sectionQualityChecks,
	"data quality checks":           sectionQualityChecks,
	"suggested data quality checks": sectionQualityChecks,
	"suggested quality checks":      sectionQualityChecks,
}

var numberedBullet = regexp.MustCompile(`^\d{1,3}[.)]\s+`)

type block struct {
	record  Record
	purpose []string
	section section
}

// ParseResponse parses a model reply into documentation records, one per TABLE
// block, in reply order. The reply may deviate from the requested format in the
// usual ways (markdown decoration, code fences, bullet styles, header aliases, a
// missing END TABLE). Every block must carry a purpose, at least one column
// description, at least one tag and at least one quality check.
func ParseResponse(raw string) ([]Record, error) {
	var blocks []*block
	var cur *block

	for _, rawLine := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line := cleanLine(rawLine)
		if line == "" || strings.HasPrefix(line, "```") || isRule(line) {
			continue
		}

		if sec, content, ok := splitHeader(line); ok {
			switch sec {
			case sectionEnd:
				cur = nil
			case sectionTable:
				cur = &block{record: Record{Table: cleanName(content)}}
				blocks = append(blocks, cur)
			default:
				if cur != nil {
					cur.section = sec
					cur.add(content)
				}
			}
			continue
		}

		if cur != nil {
			cur.add(line)
		}
	}

	if len(blocks) == 0 {
		return nil, &ResponseParseError{Kind: NoTables}
	}

	records := make([]Record, 0, len(blocks))
	seen := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		rec := b.record
		rec.Purpose = strings.Join(b.purpose, " ")

		if err := validate(rec); err != nil {
			return nil, err
		}
		key := strings.ToLower(rec.Table)
		if seen[key] {
			return nil, &ResponseParseError{Kind: DuplicateTable, Table: rec.Table}
		}
		seen[key] = true

		records = append(records, rec)
	}

	return records, nil
}

// ParseResponseFor parses a reply and checks it against the schema it documents:
// every block must name a schema table and every schema table must be documented.
// Records come back in schema order, with table names spelled as in the schema.
func ParseResponseFor(raw string, s *schema.Schema) ([]Record, error) {
	records, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}

	byTable := make(map[string]Record, len(records))
	for _, rec := range records {
		table := s.Table(rec.Table)
		if table == nil {
			return nil, &ResponseParseError{Kind: UnknownTable, Table: rec.Table}
		}
		rec.Table = table.Name
		byTable[strings.ToLower(table.Name)] = rec
	}

	ordered := make([]Record, 0, len(s.Tables))
	for _, table := range s.Tables {
		rec, ok := byTable[strings.ToLower(table.Name)]
		if !ok {
			return nil, &ResponseParseError{Kind: MissingTable, Table: table.Name}
		}
		ordered = append(ordered, rec)
	}

	return ordered, nil
}

func validate(rec Record) error {
	missing := ""
	switch {
	case rec.Table == "":
		missing = FieldTable
	case rec.Purpose == "":
		missing = FieldPurpose
	case len(rec.Columns) == 0:
		missing = FieldColumns
	case len(rec.Tags) == 0:
		missing = FieldTags
	case len(rec.QualityChecks) == 0:
		missing = FieldQualityChecks
	default:
		return nil
	}
	return &ResponseParseError{Kind: MissingField, Table: rec.Table, Field: missing}
}

func (b *block) add(text string) {
	if text == "" {
		return
	}

	switch b.section {
	case sectionPurpose:
		b.purpose = append(b.purpose, text)

	case sectionColumns:
		item, _ := stripBullet(text)
		if name, desc, ok := splitColumn(item); ok {
			b.record.Columns = append(b.record.Columns, ColumnDescription{Name: name, Description: desc})
		} else if n := len(b.record.Columns); n > 0 {
			b.record.Columns[n-1].Description = joinText(b.record.Columns[n-1].Description, item)
		}

	case sectionTags:
		item, _ := stripBullet(text)
		for _, tag := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ';' }) {
			b.addTag(tag)
		}

	case sectionQualityChecks:
		item, bullet := stripBullet(text)
		n := len(b.record.QualityChecks)
		if bullet || n == 0 {
			b.record.QualityChecks = append(b.record.QualityChecks, item)
		} else {
			b.record.QualityChecks[n-1] = joinText(b.record.QualityChecks[n-1], item)
		}
	}
}

// addTag keeps the first spelling of a tag and drops later case-insensitive repeats.
func (b *block) addTag(tag string) {
	tag = strings.TrimSpace(strings.Trim(strings.TrimSpace(tag), "`'\"#."))
	if tag == "" {
		return
	}
	for _, existing := range b.record.Tags {
		if strings.EqualFold(existing, tag) {
			return
		}
	}
	b.record.Tags = append(b.record.Tags, tag)
}

// cleanLine strips surrounding whitespace and markdown decoration: block quotes,
// heading markers and bold/underline emphasis.
func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	for strings.HasPrefix(line, ">") {
		line = strings.TrimSpace(line[1:])
	}
	line = strings.TrimSpace(strings.TrimLeft(line, "#"))
	line = strings.ReplaceAll(line, "**", "")
	line = strings.ReplaceAll(line, "__", "")
	return strings.TrimSpace(line)
}

// isRule reports lines made only of rule characters ("---", "***", "===").
func isRule(line string) bool {
	return strings.Trim(line, "-=*_ ") == ""
}

// splitHeader recognizes "KEY: content" header lines and END TABLE. Bulleted lines
// are list items, never headers.
func splitHeader(line string) (section, string, bool) {
	if _, bullet := stripBullet(line); bullet {
		return sectionNone, "", false
	}

	key := normalizeKey(line)
	if key == "end table" || key == "end of table" {
		return sectionEnd, "", true
	}

	idx := strings.Index(line, ":")
	if idx < 0 {
		// A bare heading such as "Column Descriptions".
		if sec, ok := headerAliases[key]; ok && sec != sectionTable {
			return sec, "", true
		}
		return sectionNone, "", false
	}
	sec, ok := headerAliases[normalizeKey(line[:idx])]
	if !ok {
		return sectionNone, "", false
	}
	return sec, strings.TrimSpace(line[idx+1:]), true
}

func normalizeKey(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func stripBullet(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{"- ", "* ", "+ ", "• "} {
		if strings.HasPrefix(text, prefix) {
			return strings.TrimSpace(text[len(prefix):]), true
		}
	}
	if loc := numberedBullet.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[loc[1]:]), true
	}
	return text, false
}

// splitColumn reads "name: description" or "name - description". A type hint in
// parentheses after the name ("id (INT): ...") is dropped.
func splitColumn(item string) (string, string, bool) {
	name, desc, ok := strings.Cut(item, ":")
	if !ok {
		for _, sep := range []string{" - ", " – ", " — "} {
			if name, desc, ok = strings.Cut(item, sep); ok {
				break
			}
		}
	}
	if !ok {
		return "", "", false
	}

	if i := strings.Index(name, " ("); i > 0 {
		name = name[:i]
	}
	name = cleanName(name)
	if name == "" || len(name) > 128 {
		return "", "", false
	}
	return name, strings.TrimSpace(desc), true
}

func cleanName(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "`'\"[]"))
}

func joinText(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}
