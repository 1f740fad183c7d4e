package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/c360studio/standards/llm"
	"github.com/c360studio/standards/model"
	"github.com/c360studio/standards/standards"
)

// PassingScore is the minimum mean validator score for a standard to be
// considered validated.
const PassingScore = 75.0

// validators are the five independent review perspectives. Each runs as
// its own LLM call.
var validators = []struct {
	name  string
	brief string
}{
	{"completeness", "Does the standard cover the problem fully: scope, rationale, and edge cases?"},
	{"clarity", "Is the standard unambiguous? Could two engineers disagree about what it requires?"},
	{"practicality", "Can a team actually follow this day to day without unreasonable effort?"},
	{"consistency", "Is the standard internally consistent, with examples that match the prose?"},
	{"examples", "Are the examples realistic, correct, and do they demonstrate both violation and fix?"},
}

const validatorSystemPrompt = `You are a standards reviewer. Score the supplied coding standard on the
single dimension you are given, from 0 (unusable) to 100 (exemplary).
Respond with JSON only: {"score": 0, "issues": ["..."], "recommendations": ["..."]}`

// validatorPayload is the JSON each validator returns.
type validatorPayload struct {
	Score           float64  `json:"score"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// phaseValidation fans the drafted standard out to the validators.
func (o *Orchestrator) phaseValidation(ctx context.Context, _ *active, results map[Phase]any) (any, error) {
	rr, err := researchFrom(results)
	if err != nil {
		return nil, err
	}
	return ValidateDraft(ctx, o.gen, rr.Draft)
}

// ValidateDraft runs the five validators against a draft in parallel. A
// failed validator reports an error but does not veto; the aggregate is
// the mean of the validators that completed.
func ValidateDraft(ctx context.Context, gen Generator, draft *standards.Draft) (*ValidationResult, error) {
	standardText := fmt.Sprintf("# %s\n\nLanguage: %s\nCategory: %s\nSeverity: %s\n\n%s",
		draft.Name, draft.Language, draft.Category, draft.Severity, draft.Description)
	if len(draft.Examples) > 0 {
		encoded, _ := json.MarshalIndent(draft.Examples, "", "  ")
		standardText += "\n\n## Examples\n\n" + string(encoded)
	}

	reports := make([]ValidatorReport, len(validators))
	var wg sync.WaitGroup
	for i, v := range validators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i] = runValidator(ctx, gen, v.name, v.brief, standardText)
		}()
	}
	wg.Wait()

	var (
		total     float64
		completed int
	)
	for _, report := range reports {
		if report.Error != "" {
			continue
		}
		total += report.Score
		completed++
	}
	if completed == 0 {
		return nil, fmt.Errorf("every validator failed")
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Validator < reports[j].Validator })

	score := total / float64(completed)
	return &ValidationResult{
		Reports: reports,
		Score:   score,
		Passed:  score >= PassingScore,
	}, nil
}

func runValidator(ctx context.Context, gen Generator, name, brief, standardText string) ValidatorReport {
	report := ValidatorReport{Validator: name}

	prompt := fmt.Sprintf("Dimension: %s\n%s\n\n## Standard under review\n\n%s", name, brief, standardText)
	resp, err := gen.Generate(ctx, &llm.Request{
		Prompt:       prompt,
		SystemPrompt: validatorSystemPrompt,
		Tier:         model.TierBalanced,
	})
	if err != nil {
		report.Error = err.Error()
		return report
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		report.Error = "response contained no JSON object"
		return report
	}
	var payload validatorPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		report.Error = fmt.Sprintf("decoding response: %v", err)
		return report
	}

	report.Score = clampScore(payload.Score)
	report.Issues = payload.Issues
	report.Recommendations = payload.Recommendations
	return report
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
