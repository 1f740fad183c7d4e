package research

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/standards/llm"
	"github.com/c360studio/standards/model"
	"github.com/c360studio/standards/prompt"
	"github.com/c360studio/standards/standards"
)

// Recommendation is one ranked finding from the recommendations
// pipeline.
type Recommendation struct {
	Standard   string             `json:"standard"`
	Category   standards.Category `json:"category"`
	Severity   standards.Severity `json:"severity"`
	Line       int                `json:"line,omitempty"`
	Message    string             `json:"message"`
	Suggestion string             `json:"suggestion,omitempty"`
}

// Analysis is the outcome of analyzing one code sample.
type Analysis struct {
	Language        string           `json:"language"`
	Summary         string           `json:"summary,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	Compliance      float64          `json:"compliance"`
}

// analysisPayload is the JSON shape the code_analysis template asks for.
type analysisPayload struct {
	Violations []struct {
		Standard   string `json:"standard"`
		Line       int    `json:"line"`
		Message    string `json:"message"`
		Severity   string `json:"severity"`
		Suggestion string `json:"suggestion"`
	} `json:"violations"`
	Summary string `json:"summary"`
}

// Recommend analyzes a code sample against applicable standards and
// returns ranked recommendations. Standards below the severity implied
// by threshold still appear; ranking is severity-first.
func (r *Researcher) Recommend(ctx context.Context, code, language string, applicable []*standards.Standard) (*Analysis, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("code sample is required")
	}
	if language == "" {
		language = DetectLanguage(code)
	}

	rendered, system, err := r.prompts.Render(prompt.TemplateCodeAnalysis, map[string]string{
		"language":  language,
		"standards": foldStandards(applicable),
		"code":      code,
		"focus":     "violations of the listed standards",
	})
	if err != nil {
		return nil, fmt.Errorf("rendering analysis prompt: %w", err)
	}

	resp, err := r.gen.Generate(ctx, &llm.Request{
		Prompt:       rendered,
		SystemPrompt: system,
		Tier:         model.TierBalanced,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis generation failed: %w", err)
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		return nil, fmt.Errorf("analysis response contained no JSON object")
	}
	var payload analysisPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decoding analysis response: %w", err)
	}

	byKey := make(map[string]*standards.Standard, len(applicable))
	for _, std := range applicable {
		byKey[strings.ToLower(std.Name)] = std
	}

	analysis := &Analysis{Language: language, Summary: payload.Summary}
	for _, v := range payload.Violations {
		rec := Recommendation{
			Standard:   v.Standard,
			Severity:   standards.ParseSeverity(v.Severity),
			Line:       v.Line,
			Message:    v.Message,
			Suggestion: v.Suggestion,
			Category:   standards.CategoryBestPractices,
		}
		if std, ok := byKey[strings.ToLower(v.Standard)]; ok {
			rec.Category = std.Category
		}
		analysis.Recommendations = append(analysis.Recommendations, rec)
	}

	sort.SliceStable(analysis.Recommendations, func(i, j int) bool {
		return analysis.Recommendations[i].Severity.Rank() > analysis.Recommendations[j].Severity.Rank()
	})
	analysis.Compliance = Compliance(analysis.Recommendations)
	return analysis, nil
}

// Compliance scores a sample from its findings:
// 100 − 20 per critical − 10 per high, floored at zero.
func Compliance(recs []Recommendation) float64 {
	score := 100.0
	for _, rec := range recs {
		switch rec.Severity {
		case standards.SeverityCritical:
			score -= 20
		case standards.SeverityHigh:
			score -= 10
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

// TopCategories returns the most common recommendation categories,
// ordered by frequency then name, at most n entries.
func TopCategories(recs []Recommendation, n int) []standards.Category {
	counts := make(map[standards.Category]int)
	for _, rec := range recs {
		counts[rec.Category]++
	}

	categories := make([]standards.Category, 0, len(counts))
	for category := range counts {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool {
		if counts[categories[i]] != counts[categories[j]] {
			return counts[categories[i]] > counts[categories[j]]
		}
		return categories[i] < categories[j]
	})

	if n > 0 && len(categories) > n {
		categories = categories[:n]
	}
	return categories
}

// foldStandards renders applicable standards into a prompt block.
func foldStandards(stds []*standards.Standard) string {
	if len(stds) == 0 {
		return "No specific standards supplied; apply widely accepted practice."
	}

	var sb strings.Builder
	for i, std := range stds {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "- **%s** (%s, %s): %s", std.Name, std.Category, std.Severity, std.Description)
	}
	return sb.String()
}

// DetectLanguage guesses the language of a code sample with cheap
// syntactic heuristics. Returns "general" when nothing matches.
func DetectLanguage(code string) string {
	switch {
	case strings.Contains(code, "package ") && (strings.Contains(code, "func ") || strings.Contains(code, "import (")):
		return "go"
	case strings.Contains(code, "def ") && strings.Contains(code, ":"):
		return "python"
	case strings.Contains(code, "import ") && strings.Contains(code, "from "):
		return "python"
	case strings.Contains(code, "function ") || strings.Contains(code, "=>") || strings.Contains(code, "const "):
		return "javascript"
	case strings.Contains(code, "public class ") || strings.Contains(code, "private "):
		return "java"
	case strings.Contains(code, "fn ") && strings.Contains(code, "let "):
		return "rust"
	}
	return "general"
}
