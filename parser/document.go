package parser

import (
	"strings"

	"github.com/c360studio/standards/standards"
	"gopkg.in/yaml.v3"
)

// document is a parsed view over a markdown file: optional YAML frontmatter,
// body lines, and the section structure derived from headings.
type document struct {
	frontmatter map[string]any
	lines       []string
	sections    []section
}

// section is a heading-delimited region of the document.
type section struct {
	name  string
	level int
	// start and end are line indexes into document.lines; the heading line
	// itself is excluded from the body range.
	start int
	end   int
}

func newDocument(content string) *document {
	doc := &document{}

	body := content
	if fm, rest, ok := extractFrontmatter(content); ok {
		doc.frontmatter = fm
		body = rest
	}

	doc.lines = strings.Split(body, "\n")
	doc.sections = splitSections(doc.lines)
	return doc
}

// extractFrontmatter parses YAML frontmatter delimited by --- markers.
// Malformed frontmatter is left in place and treated as body text.
func extractFrontmatter(content string) (map[string]any, string, bool) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return nil, content, false
	}

	start := strings.IndexByte(content, '\n') + 1
	closeIdx := strings.Index(content[start:], "\n---")
	if closeIdx == -1 {
		return nil, content, false
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(content[start:start+closeIdx]), &fm); err != nil {
		return nil, content, false
	}

	bodyStart := start + closeIdx + 1
	if nl := strings.IndexByte(content[bodyStart:], '\n'); nl != -1 {
		bodyStart += nl + 1
	} else {
		bodyStart = len(content)
	}
	return fm, content[bodyStart:], true
}

// frontmatterString returns a string-valued frontmatter field.
func (d *document) frontmatterString(key string) (string, bool) {
	if d.frontmatter == nil {
		return "", false
	}
	v, ok := d.frontmatter[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// version finds the document version from frontmatter or the first region
// of the body. First marker wins; absent markers default to 1.0.0.
func (d *document) version() string {
	if v, ok := d.frontmatterString("version"); ok && standards.IsValidVersion(v) {
		return v
	}

	limit := len(d.lines)
	if limit > versionScanLines {
		limit = versionScanLines
	}
	for _, line := range d.lines[:limit] {
		trimmed := strings.TrimSpace(line)
		for _, pattern := range []interface {
			FindStringSubmatch(string) []string
		}{versionHeaderPattern, versionBulletPattern, versionLabelPattern, versionBarePattern} {
			if m := pattern.FindStringSubmatch(trimmed); m != nil {
				return m[1]
			}
		}
	}
	return standards.DefaultVersion
}

// splitSections carves the document at ##/###/#### headings.
// Content before the first heading belongs to an unnamed preamble section.
func splitSections(lines []string) []section {
	var sections []section
	current := section{name: "", level: 0, start: 0}

	for i, line := range lines {
		name, level, ok := parseHeading(line)
		if !ok {
			continue
		}
		current.end = i
		if current.end > current.start || current.name != "" {
			sections = append(sections, current)
		}
		current = section{name: name, level: level, start: i + 1}
	}
	current.end = len(lines)
	sections = append(sections, current)
	return sections
}

// parseHeading recognizes level-2 through level-4 markdown headings.
func parseHeading(line string) (name string, level int, ok bool) {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range []string{"#### ", "### ", "## "} {
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, prefix)), len(prefix) - 1, true
		}
	}
	return "", 0, false
}

// nearestLevel2Section returns the name of the closest preceding ## heading
// for a given line index. Used to give explicit standards blocks their
// category context.
func (d *document) nearestLevel2Section(lineIdx int) string {
	name := ""
	for _, s := range d.sections {
		if s.level == 2 && s.start <= lineIdx {
			name = s.name
		}
	}
	return name
}

// skippable reports whether a section never contains rules.
func (s *section) skippable() bool {
	lower := strings.ToLower(s.name)
	for _, skip := range skippedSections {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}
