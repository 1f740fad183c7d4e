// Package standards defines the core domain types for the coding-standards
// knowledge service: standards, violations, code patterns, and the enumerated
// category and severity axes they share.
package standards

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies a standard by topic.
type Category string

const (
	CategorySecurity      Category = "security"
	CategoryPerformance   Category = "performance"
	CategoryTesting       Category = "testing"
	CategoryErrorHandling Category = "error-handling"
	CategoryStyle         Category = "style"
	CategoryDocumentation Category = "documentation"
	CategoryArchitecture  Category = "architecture"
	CategoryAPI           Category = "api"
	CategoryDeployment    Category = "deployment"
	CategoryBestPractices Category = "best-practices"
)

// Categories lists all valid categories.
var Categories = []Category{
	CategorySecurity,
	CategoryPerformance,
	CategoryTesting,
	CategoryErrorHandling,
	CategoryStyle,
	CategoryDocumentation,
	CategoryArchitecture,
	CategoryAPI,
	CategoryDeployment,
	CategoryBestPractices,
}

// IsValid checks if the category is a known value.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the category.
func (c Category) String() string { return string(c) }

// ParseCategory converts a string to a Category.
// Returns CategoryBestPractices for unknown values.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.IsValid() {
		return c
	}
	return CategoryBestPractices
}

// Severity expresses how urgent a standard or violation is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IsValid checks if the severity is a known value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// String returns the string representation of the severity.
func (s Severity) String() string { return string(s) }

// ParseSeverity converts a string to a Severity.
// Returns SeverityMedium for unknown values.
func ParseSeverity(s string) Severity {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.IsValid() {
		return sev
	}
	return SeverityMedium
}

// Rank orders severities for comparison; critical is highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// LanguageGeneral marks standards that apply regardless of language.
const LanguageGeneral = "general"

// Example is a before/after illustration attached to a standard.
type Example struct {
	Title       string `json:"title,omitempty"`
	Before      string `json:"before,omitempty"`
	After       string `json:"after,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Standard is the canonical unit of guidance.
type Standard struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Language    string    `json:"language"`
	Category    Category  `json:"category"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Examples    []Example `json:"examples,omitempty"`
	Version     string    `json:"version"`
	Active      bool      `json:"active"`

	// FileSource is the origin path for file-backed standards.
	// Empty for AI-generated standards.
	FileSource string `json:"file_source,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NaturalKey identifies a standard for upsert and deduplication.
// The ID identifies revisions but does not disambiguate duplicates.
type NaturalKey struct {
	Language string
	Category Category
	Name     string
}

// String renders the key in a stable, loggable form.
func (k NaturalKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Language, k.Category, k.Name)
}

// Key returns the standard's natural key.
func (s *Standard) Key() NaturalKey {
	return NaturalKey{Language: s.Language, Category: s.Category, Name: s.Name}
}

// Draft is a standard as produced by the document parser or the research
// pipeline, before the owning store assigns ID and timestamps.
type Draft struct {
	Name        string    `json:"name"`
	Language    string    `json:"language"`
	Category    Category  `json:"category"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Examples    []Example `json:"examples,omitempty"`
	Version     string    `json:"version"`
}

// Key returns the draft's natural key.
func (d *Draft) Key() NaturalKey {
	return NaturalKey{Language: d.Language, Category: d.Category, Name: d.Name}
}

// Violation records a single breach of a standard in user code.
type Violation struct {
	ID         string    `json:"id"`
	StandardID string    `json:"standard_id"`
	FilePath   string    `json:"file_path"`
	Line       int       `json:"line"`
	Column     int       `json:"column"`
	Message    string    `json:"message"`
	Severity   Severity  `json:"severity"`
	Suggestion string    `json:"suggestion,omitempty"`
	ProjectID  string    `json:"project_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// CodePattern is a recurring construct observed across analyzed code.
// Frequency accumulates on re-observation; FirstSeen never changes.
type CodePattern struct {
	ID          string    `json:"id"`
	Pattern     string    `json:"pattern"`
	Language    string    `json:"language"`
	Description string    `json:"description,omitempty"`
	Category    Category  `json:"category"`
	Frequency   int       `json:"frequency"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// HistoryEntry archives a prior version of a standard.
// Entries are append-only, keyed by title+version+archive timestamp.
type HistoryEntry struct {
	Title           string    `json:"title"`
	Version         string    `json:"version"`
	PreviousVersion string    `json:"previous_version,omitempty"`
	Content         string    `json:"content"`
	Changelog       string    `json:"changelog,omitempty"`
	ArchivedAt      time.Time `json:"archived_at"`
}
