package parser

import (
	"fmt"
	"strings"

	"github.com/c360studio/standards/standards"
)

// sectionNames maps categories to section headings whose names infer back to
// the same category on re-parse.
var sectionNames = map[standards.Category]string{
	standards.CategorySecurity:      "Security",
	standards.CategoryPerformance:   "Performance",
	standards.CategoryTesting:       "Testing",
	standards.CategoryErrorHandling: "Error Handling",
	standards.CategoryStyle:         "Style",
	standards.CategoryDocumentation: "Documentation",
	standards.CategoryArchitecture:  "Architecture",
	standards.CategoryAPI:           "API",
	standards.CategoryDeployment:    "Deployment",
	standards.CategoryBestPractices: "General Guidelines",
}

// Render serializes a standard to markdown in the canonical file layout.
// Parsing the output recovers the standard's name, category, and severity.
func Render(std *standards.Standard) string {
	var b strings.Builder

	fmt.Fprintf(&b, "---\nlanguage: %s\ncategory: %s\nversion: %s\n---\n\n", std.Language, std.Category, std.Version)
	fmt.Fprintf(&b, "# %s\n\n", std.Name)
	fmt.Fprintf(&b, "**Version**: %s\n\n", std.Version)

	section := sectionNames[std.Category]
	if section == "" {
		section = "General Guidelines"
	}
	fmt.Fprintf(&b, "## %s\n\n", section)
	fmt.Fprintf(&b, "**Standards**:\n\n")
	fmt.Fprintf(&b, "- %s\n", oneLine(std.Description))

	for _, ex := range std.Examples {
		b.WriteString("\n")
		if ex.Title != "" {
			fmt.Fprintf(&b, "### Example: %s\n\n", ex.Title)
		} else {
			b.WriteString("### Example\n\n")
		}
		if ex.Before != "" {
			fmt.Fprintf(&b, "Before:\n\n```\n%s\n```\n\n", ex.Before)
		}
		if ex.After != "" {
			fmt.Fprintf(&b, "After:\n\n```\n%s\n```\n", ex.After)
		}
		if ex.Explanation != "" {
			fmt.Fprintf(&b, "\n%s\n", oneLine(ex.Explanation))
		}
	}

	return b.String()
}

// oneLine collapses a multi-line body into a single bullet-safe line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
