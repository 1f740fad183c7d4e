package standards

import "strings"

// categoryKeywords maps section-name keywords to categories.
// First matching entry wins; order encodes precedence.
var categoryKeywords = []struct {
	keywords []string
	category Category
}{
	{[]string{"error", "exception"}, CategoryErrorHandling},
	{[]string{"security", "auth"}, CategorySecurity},
	{[]string{"performance", "optimization", "async"}, CategoryPerformance},
	{[]string{"test"}, CategoryTesting},
	{[]string{"structure", "architecture", "design", "pattern"}, CategoryArchitecture},
	{[]string{"style", "format", "naming"}, CategoryStyle},
	{[]string{"doc", "comment"}, CategoryDocumentation},
	{[]string{"deploy", "ci/cd", "docker"}, CategoryDeployment},
	{[]string{"api", "endpoint", "rest", "graphql"}, CategoryAPI},
}

// InferCategory maps a section name to a category by keyword match.
// Unmatched names fall back to best-practices.
func InferCategory(sectionName string) Category {
	lower := strings.ToLower(sectionName)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return CategoryBestPractices
}

// severityKeywords maps body keywords to severities, highest first.
var severityKeywords = []struct {
	keywords []string
	severity Severity
}{
	{[]string{"must", "required", "security", "injection", "auth"}, SeverityCritical},
	{[]string{"error", "should", "failure", "crash"}, SeverityHigh},
	{[]string{"recommended", "performance", "best practice"}, SeverityMedium},
	{[]string{"prefer", "style", "naming"}, SeverityLow},
}

// categoryDefaultSeverity supplies a severity when no keyword matches.
var categoryDefaultSeverity = map[Category]Severity{
	CategorySecurity:      SeverityCritical,
	CategoryErrorHandling: SeverityHigh,
	CategoryPerformance:   SeverityHigh,
	CategoryArchitecture:  SeverityMedium,
	CategoryBestPractices: SeverityMedium,
}

// InferSeverity scans a rule body for severity keywords, falling back to the
// category's default when nothing matches.
func InferSeverity(body string, category Category) Severity {
	lower := strings.ToLower(body)
	for _, entry := range severityKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.severity
			}
		}
	}
	if sev, ok := categoryDefaultSeverity[category]; ok {
		return sev
	}
	return SeverityLow
}
