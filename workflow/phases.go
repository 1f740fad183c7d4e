package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/standards/llm"
	"github.com/c360studio/standards/model"
	"github.com/c360studio/standards/prompt"
	"github.com/c360studio/standards/research"
	"github.com/c360studio/standards/standards"
)

// phaseInitialization validates the request and records the execution
// plan.
func (o *Orchestrator) phaseInitialization(_ context.Context, wf *active, _ map[Phase]any) (any, error) {
	req := wf.request
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("description is empty")
	}
	return &InitializationResult{
		Description:     strings.TrimSpace(req.Description),
		CodeSampleCount: len(req.CodeSamples),
		ReferenceCount:  len(req.ReferenceURLs),
		AnalysisPlanned: len(req.CodeSamples) > 0,
	}, nil
}

// phaseResearch classifies the free-text request and drafts the
// standard.
func (o *Orchestrator) phaseResearch(ctx context.Context, wf *active, _ map[Phase]any) (any, error) {
	result, err := o.research.ResearchFromText(ctx, wf.request.Description, wf.request.ReferenceURLs)
	if err != nil {
		return nil, err
	}
	return &ResearchResult{
		Classification: result.Classification,
		Draft:          result.Draft,
		Provider:       result.Provider,
	}, nil
}

// researchFrom pulls the drafted standard out of earlier phase results.
func researchFrom(results map[Phase]any) (*ResearchResult, error) {
	rr, ok := results[PhaseResearch].(*ResearchResult)
	if !ok || rr.Draft == nil {
		return nil, fmt.Errorf("no drafted standard available")
	}
	return rr, nil
}

// phaseDocumentation generates the long-form guide with the LLM and
// derives the shorter documents from the draft itself.
func (o *Orchestrator) phaseDocumentation(ctx context.Context, wf *active, results map[Phase]any) (any, error) {
	rr, err := researchFrom(results)
	if err != nil {
		return nil, err
	}
	draft := rr.Draft

	audience := wf.request.Preferences["audience"]
	if audience == "" {
		audience = "working developers"
	}

	rendered, system, err := o.prompts.Render(prompt.TemplateDocumentation, map[string]string{
		"standard": fmt.Sprintf("%s\n\n%s", draft.Name, draft.Description),
		"audience": audience,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering documentation prompt: %w", err)
	}

	resp, err := o.gen.Generate(ctx, &llm.Request{
		Prompt:       rendered,
		SystemPrompt: system,
		Tier:         model.TierBalanced,
	})
	if err != nil {
		return nil, fmt.Errorf("documentation generation failed: %w", err)
	}

	return &DocumentationBundle{
		Guide:          resp.Content,
		QuickReference: quickReference(draft),
		Checklist:      implementationChecklist(draft),
		Onboarding:     onboardingGuide(draft),
		Compliance:     complianceChecklist(draft),
	}, nil
}

func quickReference(d *standards.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s — Quick Reference\n\n", d.Name)
	fmt.Fprintf(&b, "- Language: %s\n- Category: %s\n- Severity: %s\n\n", d.Language, d.Category, d.Severity)
	b.WriteString(firstSentence(d.Description))
	b.WriteString("\n")
	return b.String()
}

func implementationChecklist(d *standards.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Implementing %q\n\n", d.Name)
	b.WriteString("- [ ] Read the full standard and its examples\n")
	b.WriteString("- [ ] Audit existing code for violations\n")
	b.WriteString("- [ ] Fix violations, highest severity first\n")
	b.WriteString("- [ ] Add the standard to code review guidelines\n")
	if len(d.Examples) > 0 {
		fmt.Fprintf(&b, "- [ ] Walk through the %d worked example(s) with the team\n", len(d.Examples))
	}
	return b.String()
}

func onboardingGuide(d *standards.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# New Team Member Guide: %s\n\n", d.Name)
	fmt.Fprintf(&b, "This %s standard applies to %s code. ", d.Category, d.Language)
	fmt.Fprintf(&b, "Violations are treated as %s severity.\n\n", d.Severity)
	b.WriteString(d.Description)
	b.WriteString("\n")
	return b.String()
}

func complianceChecklist(d *standards.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Compliance Checklist: %s\n\n", d.Name)
	fmt.Fprintf(&b, "Severity: %s\n\n", d.Severity)
	for i, ex := range d.Examples {
		fmt.Fprintf(&b, "%d. Verified: %s\n", i+1, ex.Title)
	}
	if len(d.Examples) == 0 {
		b.WriteString("1. Verified: code matches the standard's description\n")
	}
	return b.String()
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, ".\n"); idx > 0 {
		return s[:idx+1]
	}
	return s
}

// phaseAnalysis runs the drafted standard against each submitted code
// sample and aggregates compliance.
func (o *Orchestrator) phaseAnalysis(ctx context.Context, wf *active, results map[Phase]any) (any, error) {
	rr, err := researchFrom(results)
	if err != nil {
		return nil, err
	}
	draft := rr.Draft

	applicable := []*standards.Standard{{
		Name:        draft.Name,
		Language:    draft.Language,
		Category:    draft.Category,
		Severity:    draft.Severity,
		Description: draft.Description,
	}}

	var (
		samples []SampleAnalysis
		allRecs []research.Recommendation
		total   float64
	)
	for i, code := range wf.request.CodeSamples {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		analysis, err := o.research.Recommend(ctx, code, "", applicable)
		if err != nil {
			return nil, fmt.Errorf("analyzing sample %d: %w", i+1, err)
		}
		samples = append(samples, SampleAnalysis{
			Language:        analysis.Language,
			Compliance:      analysis.Compliance,
			Recommendations: analysis.Recommendations,
		})
		allRecs = append(allRecs, analysis.Recommendations...)
		total += analysis.Compliance

		o.recordPatterns(ctx, code, analysis.Language)
	}

	mean := total / float64(len(samples))
	return &AnalysisResult{
		Samples:        samples,
		MeanCompliance: mean,
		TopCategories:  research.TopCategories(allRecs, 3),
	}, nil
}

// recordPatterns is best-effort. Extraction failures never fail the
// analysis phase.
func (o *Orchestrator) recordPatterns(ctx context.Context, code, language string) {
	if o.extractor == nil || o.patterns == nil {
		return
	}
	observed, err := o.extractor.Extract(ctx, code, language)
	if err != nil {
		o.logger.Warn("pattern extraction failed", "language", language, "error", err)
		return
	}
	if err := o.extractor.Record(ctx, o.patterns, observed); err != nil {
		o.logger.Warn("pattern recording failed", "language", language, "error", err)
	}
}

// phaseFeedback assembles the human-readable closing report.
func (o *Orchestrator) phaseFeedback(_ context.Context, wf *active, results map[Phase]any) (any, error) {
	rr, err := researchFrom(results)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Standard %q created for %s/%s.\n", rr.Draft.Name, rr.Draft.Language, rr.Draft.Category)

	if vr, ok := results[PhaseValidation].(*ValidationResult); ok {
		verdict := "passed"
		if !vr.Passed {
			verdict = "needs revision"
		}
		fmt.Fprintf(&b, "Validation: %.1f/100 (%s).\n", vr.Score, verdict)
	}
	if dr, ok := results[PhaseDeployment].(*DeploymentResult); ok {
		var targets []string
		for _, sink := range dr.Sinks {
			if sink.OK {
				targets = append(targets, sink.Sink)
			}
		}
		fmt.Fprintf(&b, "Deployed to: %s.\n", strings.Join(targets, ", "))
	}
	if ar, ok := results[PhaseAnalysis].(*AnalysisResult); ok {
		fmt.Fprintf(&b, "Code analysis: %d sample(s), mean compliance %.1f.\n",
			len(ar.Samples), ar.MeanCompliance)
	} else if len(wf.request.CodeSamples) == 0 {
		b.WriteString("Code analysis: skipped, no samples provided.\n")
	}

	return b.String(), nil
}

// marshalDraft is the canonical serialization used by the cache sink.
func marshalDraft(d *standards.Draft) ([]byte, error) {
	return json.Marshal(d)
}
