package parser

import "strings"

// minBulletLen and minBulletTokens qualify a bullet line as a rule.
const (
	minBulletLen    = 10
	minBulletTokens = 3
)

// extractExplicitBlocks finds regions introduced by a **Standards**: label
// and harvests every qualifying bullet until the next level-2 heading or
// bold label. The nearest preceding ## heading supplies category context.
func (p *Parser) extractExplicitBlocks(doc *document) []candidate {
	var found []candidate

	inBlock := false
	blockSection := ""
	for i, line := range doc.lines {
		trimmed := strings.TrimSpace(line)

		if standardsLabelPattern.MatchString(trimmed) {
			inBlock = true
			blockSection = doc.nearestLevel2Section(i)
			continue
		}
		if !inBlock {
			continue
		}

		// Block ends at the next level-2 heading or bold label.
		if strings.HasPrefix(trimmed, "## ") || boldLabelPattern.MatchString(trimmed) {
			inBlock = false
			continue
		}

		if body, ok := bulletBody(trimmed); ok {
			found = append(found, candidate{body: body, section: blockSection})
		}
	}
	return found
}

// extractSectionBullets harvests qualifying bullets from every kept section.
func (p *Parser) extractSectionBullets(doc *document) []candidate {
	var found []candidate
	for _, s := range doc.sections {
		if s.skippable() {
			continue
		}
		inFence := false
		for _, line := range doc.lines[s.start:s.end] {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "```") {
				inFence = !inFence
				continue
			}
			if inFence {
				continue
			}
			if body, ok := bulletBody(trimmed); ok {
				found = append(found, candidate{body: body, section: s.name})
			}
		}
	}
	return found
}

// extractSectionNumbered harvests "1. rule" style items from kept sections.
func (p *Parser) extractSectionNumbered(doc *document) []candidate {
	var found []candidate
	for _, s := range doc.sections {
		if s.skippable() {
			continue
		}
		inFence := false
		for _, line := range doc.lines[s.start:s.end] {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "```") {
				inFence = !inFence
				continue
			}
			if inFence {
				continue
			}
			m := numberedItemPattern.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			body := strings.TrimSpace(m[1])
			if qualifies(body) {
				found = append(found, candidate{body: body, section: s.name})
			}
		}
	}
	return found
}

// bulletBody extracts the content of a - or * bullet line when it qualifies
// as a rule. Fenced-code delimiters never qualify.
func bulletBody(trimmed string) (string, bool) {
	if !strings.HasPrefix(trimmed, "- ") && !strings.HasPrefix(trimmed, "* ") {
		return "", false
	}
	body := strings.TrimSpace(trimmed[2:])
	if strings.HasPrefix(body, "```") {
		return "", false
	}
	if !qualifies(body) {
		return "", false
	}
	return body, true
}

// qualifies applies the minimum length and token-count thresholds.
func qualifies(body string) bool {
	return len(body) >= minBulletLen && len(strings.Fields(body)) >= minBulletTokens
}
