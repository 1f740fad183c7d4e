package parser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/c360studio/standards/standards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MinimalStandard(t *testing.T) {
	content := []byte(`# Error Handling Standards

## Exceptions

- Catch specific exceptions, never bare except
`)

	drafts := New(nil).Parse(content, "python")
	require.Len(t, drafts, 1)

	draft := drafts[0]
	assert.Equal(t, "Catch specific exceptions, never bare except", draft.Name)
	assert.Equal(t, draft.Name, draft.Description)
	assert.Equal(t, "python", draft.Language)
	assert.Equal(t, standards.CategoryErrorHandling, draft.Category)
	assert.Equal(t, standards.SeverityHigh, draft.Severity)
	assert.Equal(t, standards.DefaultVersion, draft.Version)
}

func TestParse_VersionMarkers(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"header", "## Version 2.1.0\n\n## Rules\n\n- Always validate user input first\n", "2.1.0"},
		{"label", "**Version**: 3.0.1\n\n## Rules\n\n- Always validate user input first\n", "3.0.1"},
		{"bulleted label", "- **Version**: 1.2.3\n\n## Rules\n\n- Always validate user input first\n", "1.2.3"},
		{"bare", "Version: 0.9.0\n\n## Rules\n\n- Always validate user input first\n", "0.9.0"},
		{"absent defaults", "## Rules\n\n- Always validate user input first\n", "1.0.0"},
		{"first match wins", "**Version**: 4.0.0\nVersion: 5.0.0\n\n## Rules\n\n- Always validate user input first\n", "4.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts := New(nil).Parse([]byte(tt.content), "general")
			require.NotEmpty(t, drafts)
			assert.Equal(t, tt.expected, drafts[0].Version)
		})
	}
}

func TestParse_ExplicitStandardsBlock(t *testing.T) {
	content := []byte(`# Security Guide

## Authentication

Some prose about authentication.

**Standards**:

- Rotate API keys at least every ninety days
- Store secrets in the environment, never in source

**Notes**: this label ends the block.

- This bullet is outside the standards block entirely
`)

	drafts := New(nil).Parse(content, "general")

	var names []string
	for _, d := range drafts {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "Rotate API keys at least every ninety days")
	assert.Contains(t, names, "Store secrets in the environment, never in source")

	// All bullets sit under ## Authentication, so every draft is security.
	for _, d := range drafts {
		assert.Equal(t, standards.CategorySecurity, d.Category, d.Name)
	}
}

func TestParse_NumberedItems(t *testing.T) {
	content := []byte(`## Testing Checklist

1. Write a failing test before the fix
2. Keep unit tests independent of network access
3. no
`)

	drafts := New(nil).Parse(content, "go")
	require.Len(t, drafts, 2)
	assert.Equal(t, "Write a failing test before the fix", drafts[0].Name)
	assert.Equal(t, standards.CategoryTesting, drafts[0].Category)
}

func TestParse_SkipsNonRuleSections(t *testing.T) {
	content := []byte(`## Table of Contents

- A long enough entry that would otherwise qualify here

## Summary of Changes

- Another long enough entry that would otherwise qualify

## Version History

- Yet another long enough entry that would otherwise qualify

## Style

- Prefer descriptive names over abbreviations everywhere
`)

	drafts := New(nil).Parse(content, "general")
	require.Len(t, drafts, 1)
	assert.Equal(t, standards.CategoryStyle, drafts[0].Category)
}

func TestParse_BulletQualification(t *testing.T) {
	content := []byte("## Rules\n\n" +
		"- short\n" + // too short
		"- only two-tokens\n" + // too few tokens
		"- ``` not a rule\n" + // fence delimiter
		"- This one is a perfectly valid rule\n")

	drafts := New(nil).Parse(content, "general")
	require.Len(t, drafts, 1)
	assert.Equal(t, "This one is a perfectly valid rule", drafts[0].Name)
}

func TestParse_IgnoresFencedCode(t *testing.T) {
	content := []byte("## Rules\n\n```go\n- this bullet lives inside a code fence\n```\n\n- A real rule that lives outside the fence\n")

	drafts := New(nil).Parse(content, "go")
	require.Len(t, drafts, 1)
	assert.Equal(t, "A real rule that lives outside the fence", drafts[0].Name)
}

func TestParse_Deduplicates(t *testing.T) {
	// The same bullet appears in an explicit block and as a section bullet;
	// the numbered variant differs only after 100 characters.
	long := strings.Repeat("Validate every request body against the schema before touching storage. ", 2)
	content := []byte("## API\n\n**Standards**:\n\n- " + long + "\n\n## More API\n\n- " + long + "tail\n")

	drafts := New(nil).Parse(content, "general")
	assert.Len(t, drafts, 1)
}

func TestDedupeKey_CountsRunes(t *testing.T) {
	// A multi-byte rune straddles the byte-100 boundary; truncation must
	// keep it whole rather than emit a broken sequence.
	body := strings.Repeat("a", 99) + "é plus trailing text"
	key := dedupeKey(body)

	assert.True(t, utf8.ValidString(key), "key %q", key)
	assert.Equal(t, dedupeKeyLen, utf8.RuneCountInString(key))
	assert.True(t, strings.HasSuffix(key, "é"))

	// Bodies identical in their first 100 runes still collapse.
	other := strings.Repeat("a", 99) + "é entirely different tail"
	assert.Equal(t, key, dedupeKey(other))
}

func TestParse_LongBodyNameTruncation(t *testing.T) {
	body := "Every handler must validate authentication tokens before performing any work on behalf of the caller, without exception. Additional detail follows."
	content := []byte("## Security\n\n- " + body + "\n")

	drafts := New(nil).Parse(content, "general")
	require.Len(t, drafts, 1)

	d := drafts[0]
	assert.Equal(t, body, d.Description)
	assert.True(t, strings.HasSuffix(d.Name, "..."), "name %q", d.Name)
	assert.LessOrEqual(t, len(d.Name), nameTruncateLen+3)
	assert.NotEqual(t, d.Name, d.Description)
}

func TestParse_EmptyAndUnreadable(t *testing.T) {
	p := New(nil)
	assert.Empty(t, p.Parse(nil, "go"))
	assert.Empty(t, p.Parse([]byte("just prose, no headings, no bullets"), "go"))
	assert.Empty(t, p.Parse([]byte{0x00, 0x01, 0x02}, "go"))
}

func TestParse_Frontmatter(t *testing.T) {
	content := []byte(`---
language: rust
category: performance
version: 2.0.0
---

## Anything

- Avoid unnecessary allocations in hot loops always
`)

	drafts := New(nil).Parse(content, "general")
	require.Len(t, drafts, 1)
	assert.Equal(t, "rust", drafts[0].Language)
	assert.Equal(t, standards.CategoryPerformance, drafts[0].Category)
	assert.Equal(t, "2.0.0", drafts[0].Version)
}

func TestRender_RoundTrip(t *testing.T) {
	original := New(nil).Parse([]byte("## Exceptions\n\n- Catch specific exceptions, never bare except\n"), "python")
	require.Len(t, original, 1)

	std := &standards.Standard{
		ID:          "std-1",
		Name:        original[0].Name,
		Language:    original[0].Language,
		Category:    original[0].Category,
		Severity:    original[0].Severity,
		Description: original[0].Description,
		Version:     original[0].Version,
		Active:      true,
	}

	reparsed := New(nil).Parse([]byte(Render(std)), std.Language)
	require.Len(t, reparsed, 1)
	assert.Equal(t, std.Name, reparsed[0].Name)
	assert.Equal(t, std.Category, reparsed[0].Category)
	assert.Equal(t, std.Severity, reparsed[0].Severity)
	assert.Equal(t, std.Version, reparsed[0].Version)
}
