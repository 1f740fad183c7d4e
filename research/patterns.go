package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/c360studio/standards/standards"
)

// ObservedPattern is one recurring construct found in a code sample.
type ObservedPattern struct {
	Form        string             `json:"form"`
	Language    string             `json:"language"`
	Category    standards.Category `json:"category"`
	Description string             `json:"description"`
	Count       int                `json:"count"`
}

// patternSpec maps a tree-sitter node type to the pattern it evidences.
type patternSpec struct {
	category    standards.Category
	description string
}

var goPatterns = map[string]patternSpec{
	"function_declaration": {standards.CategoryArchitecture, "top-level function definition"},
	"method_declaration":   {standards.CategoryArchitecture, "method on a receiver type"},
	"defer_statement":      {standards.CategoryErrorHandling, "deferred cleanup"},
	"go_statement":         {standards.CategoryPerformance, "goroutine launch"},
	"select_statement":     {standards.CategoryPerformance, "channel select"},
	"type_switch_statement": {standards.CategoryStyle, "type switch dispatch"},
}

var pythonPatterns = map[string]patternSpec{
	"function_definition": {standards.CategoryArchitecture, "function definition"},
	"class_definition":    {standards.CategoryArchitecture, "class definition"},
	"try_statement":       {standards.CategoryErrorHandling, "try/except error handling"},
	"with_statement":      {standards.CategoryBestPractices, "context-managed resource"},
	"decorated_definition": {standards.CategoryStyle, "decorated definition"},
	"list_comprehension":  {standards.CategoryStyle, "list comprehension"},
}

var javascriptPatterns = map[string]patternSpec{
	"function_declaration": {standards.CategoryArchitecture, "function declaration"},
	"arrow_function":       {standards.CategoryStyle, "arrow function"},
	"class_declaration":    {standards.CategoryArchitecture, "class declaration"},
	"try_statement":        {standards.CategoryErrorHandling, "try/catch error handling"},
	"await_expression":     {standards.CategoryPerformance, "awaited async call"},
}

// PatternExtractor walks code samples with tree-sitter and tallies the
// constructs they use. Supported languages: go, javascript, python.
type PatternExtractor struct {
	logger *slog.Logger
}

// NewPatternExtractor creates an extractor.
func NewPatternExtractor(logger *slog.Logger) *PatternExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PatternExtractor{logger: logger}
}

// Supported reports whether pattern extraction covers the language.
func (e *PatternExtractor) Supported(language string) bool {
	switch normalizeExtractorLanguage(language) {
	case "go", "python", "javascript":
		return true
	}
	return false
}

// Extract parses the sample and returns the observed patterns with
// per-sample occurrence counts. Unsupported languages return nil.
func (e *PatternExtractor) Extract(ctx context.Context, code, language string) ([]ObservedPattern, error) {
	language = normalizeExtractorLanguage(language)

	var lang *sitter.Language
	var specs map[string]patternSpec
	switch language {
	case "go":
		lang, specs = golang.GetLanguage(), goPatterns
	case "python":
		lang, specs = python.GetLanguage(), pythonPatterns
	case "javascript":
		lang, specs = javascript.GetLanguage(), javascriptPatterns
	default:
		return nil, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, []byte(code))
	if err != nil {
		return nil, fmt.Errorf("parsing %s sample: %w", language, err)
	}
	defer tree.Close()

	counts := make(map[string]int)
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if _, ok := specs[n.Type()]; ok {
			counts[n.Type()]++
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())

	patterns := make([]ObservedPattern, 0, len(counts))
	for nodeType, count := range counts {
		spec := specs[nodeType]
		patterns = append(patterns, ObservedPattern{
			Form:        nodeType,
			Language:    language,
			Category:    spec.category,
			Description: spec.description,
			Count:       count,
		})
	}
	return patterns, nil
}

// PatternStore records pattern observations. Satisfied by *graph.Client.
type PatternStore interface {
	UpsertPattern(ctx context.Context, pattern, language string, category standards.Category, description string) (*standards.CodePattern, error)
}

// Record upserts each observation once per occurrence so pattern
// frequency in the graph tracks real usage counts.
func (e *PatternExtractor) Record(ctx context.Context, store PatternStore, patterns []ObservedPattern) error {
	for _, p := range patterns {
		for i := 0; i < p.Count; i++ {
			if _, err := store.UpsertPattern(ctx, p.Form, p.Language, p.Category, p.Description); err != nil {
				return fmt.Errorf("recording pattern %s: %w", p.Form, err)
			}
		}
	}
	return nil
}

func normalizeExtractorLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	switch language {
	case "golang":
		return "go"
	case "js", "typescript", "ts":
		return "javascript"
	case "py":
		return "python"
	}
	return language
}
