package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/standards/llm"
	"github.com/c360studio/standards/model"
	"github.com/c360studio/standards/standards"
)

// Generator produces LLM responses. Satisfied by *llm.Manager.
type Generator interface {
	Generate(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Classification is the structured reading of a free-text request.
type Classification struct {
	Title      string             `json:"title"`
	Category   standards.Category `json:"category"`
	Language   string             `json:"language"`
	Complexity string             `json:"complexity"`
	Priority   string             `json:"priority"`
}

const classifySystemPrompt = `You are a technical triage assistant for an engineering standards service.
You classify incoming requests precisely and respond with JSON only.`

const classifyPromptFormat = `Classify this standards request.

Request: %s

Return a JSON object:
{
  "title": "short descriptive title",
  "category": "one of: security, performance, testing, error-handling, style, documentation, architecture, api, deployment, best-practices",
  "language": "programming language token, or \"general\"",
  "complexity": "low | medium | high",
  "priority": "low | medium | high | critical"
}`

// Classify reads a free-text request into a Classification using the
// fast model tier. Unparseable responses fall back to conservative
// defaults rather than failing the workflow.
func (r *Researcher) Classify(ctx context.Context, request string) (*Classification, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, fmt.Errorf("request text is required")
	}

	resp, err := r.gen.Generate(ctx, &llm.Request{
		Prompt:       fmt.Sprintf(classifyPromptFormat, request),
		SystemPrompt: classifySystemPrompt,
		Tier:         model.TierFast,
	})
	if err != nil {
		return nil, fmt.Errorf("classification request failed: %w", err)
	}

	c := &Classification{}
	raw := llm.ExtractJSON(resp.Content)
	if raw == "" || json.Unmarshal([]byte(raw), c) != nil {
		r.logger.Warn("unparseable classification, using defaults", "content_len", len(resp.Content))
		return defaultClassification(request), nil
	}

	if c.Title == "" {
		c.Title = titleFrom(request)
	}
	c.Category = standards.ParseCategory(c.Category.String())
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	if c.Language == "" {
		c.Language = standards.LanguageGeneral
	}
	if !validLevel(c.Complexity, "low", "medium", "high") {
		c.Complexity = "medium"
	}
	if !validLevel(c.Priority, "low", "medium", "high", "critical") {
		c.Priority = "medium"
	}
	return c, nil
}

func defaultClassification(request string) *Classification {
	return &Classification{
		Title:      titleFrom(request),
		Category:   standards.CategoryBestPractices,
		Language:   standards.LanguageGeneral,
		Complexity: "medium",
		Priority:   "medium",
	}
}

func titleFrom(request string) string {
	const limit = 60
	request = strings.Join(strings.Fields(request), " ")
	if len(request) <= limit {
		return request
	}
	return request[:limit] + "..."
}

func validLevel(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
