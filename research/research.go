package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/standards/llm"
	"github.com/c360studio/standards/model"
	"github.com/c360studio/standards/prompt"
	"github.com/c360studio/standards/standards"
)

// Researcher runs the shared research routine: classification, reference
// enrichment, and LLM drafting of a standard.
type Researcher struct {
	gen      Generator
	prompts  *prompt.Store
	enricher *Enricher
	logger   *slog.Logger
}

// Option configures a Researcher.
type Option func(*Researcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Researcher) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEnricher sets the web reference enricher. Without one, reference
// URLs are ignored.
func WithEnricher(e *Enricher) Option {
	return func(r *Researcher) { r.enricher = e }
}

// NewResearcher creates a researcher over the generator and prompt store.
func NewResearcher(gen Generator, prompts *prompt.Store, opts ...Option) *Researcher {
	r := &Researcher{
		gen:     gen,
		prompts: prompts,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Request describes one research task.
type Request struct {
	Topic         string
	Language      string
	Category      standards.Category
	ReferenceURLs []string
}

// Result is the outcome of a research run.
type Result struct {
	Classification *Classification  `json:"classification,omitempty"`
	Draft          *standards.Draft `json:"draft"`
	References     []ReferenceDoc   `json:"references,omitempty"`
	Provider       string           `json:"provider"`
}

// draftPayload is the JSON shape the research template asks for.
type draftPayload struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Severity    string              `json:"severity"`
	Examples    []standards.Example `json:"examples"`
}

// Research produces a standard draft for the topic, enriching the prompt
// with whatever reference URLs could be fetched.
func (r *Researcher) Research(ctx context.Context, req *Request) (*Result, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("research topic is required")
	}

	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = standards.LanguageGeneral
	}
	category := req.Category
	if !category.IsValid() {
		category = standards.CategoryBestPractices
	}

	result := &Result{}
	if r.enricher != nil && len(req.ReferenceURLs) > 0 {
		result.References = r.enricher.Enrich(ctx, req.ReferenceURLs)
	}

	rendered, system, err := r.prompts.Render(prompt.TemplateStandardsResearch, map[string]string{
		"topic":      req.Topic,
		"language":   language,
		"category":   category.String(),
		"references": FoldReferences(result.References),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering research prompt: %w", err)
	}

	resp, err := r.gen.Generate(ctx, &llm.Request{
		Prompt:       rendered,
		SystemPrompt: system,
		Tier:         model.TierAdvanced,
	})
	if err != nil {
		return nil, fmt.Errorf("research generation failed: %w", err)
	}
	result.Provider = resp.Provider

	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		return nil, fmt.Errorf("research response contained no JSON object")
	}
	var payload draftPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decoding research response: %w", err)
	}
	if payload.Name == "" || payload.Description == "" {
		return nil, fmt.Errorf("research response missing name or description")
	}

	result.Draft = &standards.Draft{
		Name:        payload.Name,
		Language:    language,
		Category:    category,
		Severity:    standards.ParseSeverity(payload.Severity),
		Description: payload.Description,
		Examples:    payload.Examples,
		Version:     standards.DefaultVersion,
	}

	r.logger.Info("research produced draft",
		"topic", req.Topic,
		"key", result.Draft.Key().String(),
		"references", len(result.References),
		"provider", resp.Provider,
	)
	return result, nil
}

// ResearchFromText classifies a free-text request first, then researches
// the classified topic. Used by the workflow orchestrator.
func (r *Researcher) ResearchFromText(ctx context.Context, request string, referenceURLs []string) (*Result, error) {
	classification, err := r.Classify(ctx, request)
	if err != nil {
		return nil, err
	}

	result, err := r.Research(ctx, &Request{
		Topic:         classification.Title,
		Language:      classification.Language,
		Category:      classification.Category,
		ReferenceURLs: referenceURLs,
	})
	if err != nil {
		return nil, err
	}
	result.Classification = classification
	return result, nil
}
