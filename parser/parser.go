// Package parser extracts typed standard drafts from markdown documents.
// It runs three extraction strategies over the same document (explicit
// **Standards**: blocks, section bullets, section-numbered items) and
// deduplicates the combined results.
package parser

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/c360studio/standards/standards"
)

// versionScanLines bounds how far into a document version markers are sought.
const versionScanLines = 50

// dedupeKeyLen is how much of the description participates in deduplication.
const dedupeKeyLen = 100

// nameTruncateLen is the maximum length of a derived name before an ellipsis.
const nameTruncateLen = 80

var (
	// Version markers, in priority order. First match wins.
	versionHeaderPattern = regexp.MustCompile(`(?i)^##\s+Version\s+(\d+\.\d+\.\d+)`)
	versionLabelPattern  = regexp.MustCompile(`(?i)^\*\*Version\*\*:\s*(\d+\.\d+\.\d+)`)
	versionBulletPattern = regexp.MustCompile(`(?i)^[-*]\s+\*\*Version\*\*:\s*(\d+\.\d+\.\d+)`)
	versionBarePattern   = regexp.MustCompile(`(?i)^Version:\s*(\d+\.\d+\.\d+)`)

	// standardsLabelPattern introduces an explicit standards block.
	standardsLabelPattern = regexp.MustCompile(`(?i)^\*\*Standards\*\*:`)

	// boldLabelPattern terminates an explicit standards block.
	boldLabelPattern = regexp.MustCompile(`^\*\*[^*]+\*\*:`)

	// numberedItemPattern matches "1. rule text" list items.
	numberedItemPattern = regexp.MustCompile(`^\d+\.\s+(.+)$`)

	// sentenceEndPattern locates the end of the first sentence.
	sentenceEndPattern = regexp.MustCompile(`[.!?]\s`)
)

// skippedSections are section names that never contain rules.
var skippedSections = []string{"table of contents", "version", "summary of changes"}

// Parser converts markdown documents into standard drafts.
type Parser struct {
	logger *slog.Logger
}

// New creates a parser. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse extracts standard drafts from a markdown document.
// It never fails: malformed or empty input yields an empty slice.
func (p *Parser) Parse(content []byte, language string) []standards.Draft {
	if len(content) == 0 {
		return nil
	}
	if !utf8Valid(content) {
		p.logger.Warn("Skipping unreadable document", "language", language, "bytes", len(content))
		return nil
	}

	doc := newDocument(string(content))
	version := doc.version()

	var candidates []candidate
	candidates = append(candidates, p.extractExplicitBlocks(doc)...)
	candidates = append(candidates, p.extractSectionBullets(doc)...)
	candidates = append(candidates, p.extractSectionNumbered(doc)...)

	drafts := make([]standards.Draft, 0, len(candidates))
	seen := make(map[string]bool)
	for _, c := range candidates {
		key := dedupeKey(c.body)
		if seen[key] {
			continue
		}
		seen[key] = true
		drafts = append(drafts, p.draftFromCandidate(c, language, version, doc))
	}

	if len(drafts) == 0 {
		p.logger.Debug("No standards found in document", "language", language)
	}
	return drafts
}

// candidate is a rule body paired with its section context.
type candidate struct {
	body    string
	section string
}

// draftFromCandidate builds a typed draft from a raw rule body.
func (p *Parser) draftFromCandidate(c candidate, language, version string, doc *document) standards.Draft {
	category := standards.InferCategory(c.section)
	if fmCat, ok := doc.frontmatterString("category"); ok {
		category = standards.ParseCategory(fmCat)
	}
	if fmLang, ok := doc.frontmatterString("language"); ok && fmLang != "" {
		language = fmLang
	}

	name, description := splitNameDescription(c.body)
	return standards.Draft{
		Name:        name,
		Language:    language,
		Category:    category,
		Severity:    standards.InferSeverity(c.body, category),
		Description: description,
		Version:     version,
	}
}

// splitNameDescription derives the name/description pair from a rule body.
// Short bodies serve as both; long bodies use the first sentence as name.
func splitNameDescription(body string) (name, description string) {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= dedupeKeyLen {
		return body, body
	}

	first := body
	if loc := sentenceEndPattern.FindStringIndex(body); loc != nil {
		first = body[:loc[0]+1]
	}
	if runes := []rune(first); len(runes) > nameTruncateLen {
		first = strings.TrimSpace(string(runes[:nameTruncateLen])) + "..."
	}
	return first, body
}

// dedupeKey normalizes a rule body for first-occurrence deduplication.
// Truncation counts runes so a multi-byte character at the boundary is
// kept or dropped whole.
func dedupeKey(body string) string {
	key := strings.ToLower(strings.TrimSpace(body))
	if runes := []rune(key); len(runes) > dedupeKeyLen {
		key = string(runes[:dedupeKeyLen])
	}
	return key
}

// utf8Valid reports whether the content can be treated as text.
func utf8Valid(content []byte) bool {
	// NUL bytes indicate a binary file masquerading as markdown.
	for _, b := range content {
		if b == 0 {
			return false
		}
	}
	return true
}
