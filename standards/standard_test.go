package standards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected Category
	}{
		{"security", CategorySecurity},
		{"  Error-Handling ", CategoryErrorHandling},
		{"API", CategoryAPI},
		{"nonsense", CategoryBestPractices},
		{"", CategoryBestPractices},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseCategory(tt.input), "input %q", tt.input)
	}
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, ParseSeverity("CRITICAL"))
	assert.Equal(t, SeverityLow, ParseSeverity("low"))
	assert.Equal(t, SeverityMedium, ParseSeverity("unknown"))
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Equal(t, 0, Severity("bogus").Rank())
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		section  string
		expected Category
	}{
		{"Exceptions", CategoryErrorHandling},
		{"Error Handling", CategoryErrorHandling},
		{"Security Considerations", CategorySecurity},
		{"Authentication", CategorySecurity},
		{"Performance Tuning", CategoryPerformance},
		{"Async Patterns", CategoryPerformance},
		{"Testing Strategy", CategoryTesting},
		{"Project Structure", CategoryArchitecture},
		{"Code Style", CategoryStyle},
		{"Documentation", CategoryDocumentation},
		{"Deployment", CategoryDeployment},
		{"REST Endpoints", CategoryAPI},
		{"Miscellaneous", CategoryBestPractices},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, InferCategory(tt.section), "section %q", tt.section)
	}
}

func TestInferSeverity(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		category Category
		expected Severity
	}{
		{"must is critical", "You must validate all inputs", CategoryTesting, SeverityCritical},
		{"injection is critical", "Guard against SQL injection", CategoryStyle, SeverityCritical},
		{"should is high", "Callers should check the result", CategoryTesting, SeverityHigh},
		{"recommended is medium", "It is recommended to pool connections", CategoryTesting, SeverityMedium},
		{"prefer is low", "Prefer short names", CategoryDocumentation, SeverityLow},
		{"security category default", "Use TLS everywhere", CategorySecurity, SeverityCritical},
		{"error-handling category default", "Log with context", CategoryErrorHandling, SeverityHigh},
		{"architecture category default", "Keep layers separate", CategoryArchitecture, SeverityMedium},
		{"unmatched falls to low", "Use four spaces", CategoryDocumentation, SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferSeverity(tt.body, tt.category))
		})
	}
}

func TestNaturalKey(t *testing.T) {
	std := &Standard{Name: "No bare except", Language: "python", Category: CategoryErrorHandling}
	key := std.Key()
	assert.Equal(t, "python", key.Language)
	assert.Equal(t, CategoryErrorHandling, key.Category)
	assert.Equal(t, "python/error-handling/No bare except", key.String())

	draft := &Draft{Name: "No bare except", Language: "python", Category: CategoryErrorHandling}
	assert.Equal(t, key, draft.Key())
}

func TestBumpVersion(t *testing.T) {
	assert.Equal(t, "2.0.0", BumpVersion("1.4.2", BumpMajor))
	assert.Equal(t, "1.5.0", BumpVersion("1.4.2", BumpMinor))
	assert.Equal(t, "1.4.3", BumpVersion("1.4.2", BumpPatch))
	assert.Equal(t, DefaultVersion, BumpVersion("garbage", BumpPatch))
}

func TestParseVersion(t *testing.T) {
	major, minor, patch, err := ParseVersion("3.10.7")
	require.NoError(t, err)
	assert.Equal(t, 3, major)
	assert.Equal(t, 10, minor)
	assert.Equal(t, 7, patch)

	_, _, _, err = ParseVersion("1.2")
	require.Error(t, err)

	_, _, _, err = ParseVersion("1.a.0")
	require.Error(t, err)

	assert.True(t, IsValidVersion("1.0.0"))
	assert.False(t, IsValidVersion("v1.0.0"))
}
