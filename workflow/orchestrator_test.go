package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/standards/cache"
	"github.com/c360studio/standards/llm"
	"github.com/c360studio/standards/prompt"
	"github.com/c360studio/standards/research"
	"github.com/c360studio/standards/standards"
)

// fakeResearch scripts the research surface.
type fakeResearch struct {
	mu          sync.Mutex
	result      *research.Result
	researchErr error
	analysis    *research.Analysis
	recommend   int

	// blockResearch, when set, parks ResearchFromText until the context
	// is cancelled or the channel is closed.
	blockResearch chan struct{}
}

func (f *fakeResearch) ResearchFromText(ctx context.Context, _ string, _ []string) (*research.Result, error) {
	if f.blockResearch != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.blockResearch:
		}
	}
	if f.researchErr != nil {
		return nil, f.researchErr
	}
	return f.result, nil
}

func (f *fakeResearch) Recommend(_ context.Context, _, _ string, _ []*standards.Standard) (*research.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recommend++
	return f.analysis, nil
}

// fakeGen answers every call with the same content.
type fakeGen struct {
	mu      sync.Mutex
	content string
	err     error
	calls   int
}

func (g *fakeGen) Generate(_ context.Context, _ *llm.Request) (*llm.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &llm.Response{Content: g.content, Provider: "fake"}, nil
}

// fakeGraphStore records upserts.
type fakeGraphStore struct {
	mu      sync.Mutex
	upserts int
	err     error
}

func (s *fakeGraphStore) UpsertStandard(_ context.Context, draft *standards.Draft) (*standards.Standard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.upserts++
	return &standards.Standard{
		ID:       "standard:test-1",
		Name:     draft.Name,
		Language: draft.Language,
		Category: draft.Category,
	}, nil
}

func testDraft() *standards.Draft {
	return &standards.Draft{
		Name:        "Wrap errors with context",
		Language:    "go",
		Category:    standards.CategoryErrorHandling,
		Severity:    standards.SeverityHigh,
		Description: "Every returned error must be wrapped with the failing operation. Bare returns lose the call chain.",
		Examples: []standards.Example{
			{Title: "Wrap on return", Before: "return err", After: `return fmt.Errorf("open config: %w", err)`, Explanation: "keeps context"},
		},
		Version: standards.DefaultVersion,
	}
}

func happyResearch() *fakeResearch {
	return &fakeResearch{
		result: &research.Result{
			Classification: &research.Classification{
				Title:    "Wrap errors with context",
				Category: standards.CategoryErrorHandling,
				Language: "go",
			},
			Draft:    testDraft(),
			Provider: "fake",
		},
		analysis: &research.Analysis{
			Language:   "go",
			Summary:    "one high finding",
			Compliance: 90,
			Recommendations: []research.Recommendation{
				{Standard: "Wrap errors with context", Category: standards.CategoryErrorHandling, Severity: standards.SeverityHigh, Message: "bare return"},
			},
		},
	}
}

const validatorJSON = `{"score": 90, "issues": [], "recommendations": ["tighten wording"]}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(t *testing.T, rs ResearchService, gen Generator, opts ...Option) *Orchestrator {
	t.Helper()
	base := []Option{WithLogger(testLogger()), WithOutputDir(t.TempDir())}
	return NewOrchestrator(rs, gen, prompt.NewStore(), append(base, opts...)...)
}

func waitTerminal(t *testing.T, o *Orchestrator, id string) *Result {
	t.Helper()
	require.Eventually(t, func() bool {
		report, err := o.Status(id)
		return err == nil && report.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)

	report, err := o.Status(id)
	require.NoError(t, err)
	require.NotNil(t, report.Result)
	return report.Result
}

func TestWorkflow_HappyPathWithSamples(t *testing.T) {
	rs := happyResearch()
	gen := &fakeGen{content: validatorJSON}
	graphStore := &fakeGraphStore{}
	memCache := cache.NewMemory(100)
	outDir := t.TempDir()

	o := NewOrchestrator(rs, gen, prompt.NewStore(),
		WithLogger(testLogger()),
		WithOutputDir(outDir),
		WithGraph(graphStore),
		WithCache(memCache),
	)

	id, err := o.Start(&Request{
		Description: "our services lose error context",
		CodeSamples: []string{"package main\n\nfunc main() {}\n"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	result := waitTerminal(t, o, id)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, PhaseCompletion, result.Phase)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)

	init, ok := result.PhaseResults[PhaseInitialization].(*InitializationResult)
	require.True(t, ok)
	assert.True(t, init.AnalysisPlanned)

	rr, ok := result.PhaseResults[PhaseResearch].(*ResearchResult)
	require.True(t, ok)
	assert.Equal(t, "Wrap errors with context", rr.Draft.Name)

	docs, ok := result.PhaseResults[PhaseDocumentation].(*DocumentationBundle)
	require.True(t, ok)
	assert.NotEmpty(t, docs.Guide)
	assert.Contains(t, docs.QuickReference, "Quick Reference")
	assert.Contains(t, docs.Checklist, "- [ ]")

	vr, ok := result.PhaseResults[PhaseValidation].(*ValidationResult)
	require.True(t, ok)
	assert.Len(t, vr.Reports, 5)
	assert.InDelta(t, 90, vr.Score, 0.01)
	assert.True(t, vr.Passed)

	dr, ok := result.PhaseResults[PhaseDeployment].(*DeploymentResult)
	require.True(t, ok)
	assert.Len(t, dr.Sinks, 3)
	assert.Equal(t, "standard:test-1", dr.StandardID)

	rendered := filepath.Join(outDir, "go", "error-handling", "wrap-errors-with-context_v1.0.0.md")
	content, err := os.ReadFile(rendered)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Wrap errors with context")

	_, found := memCache.Get(context.Background(), cache.NamespaceStandards, testDraft().Key().String())
	assert.True(t, found)

	ar, ok := result.PhaseResults[PhaseAnalysis].(*AnalysisResult)
	require.True(t, ok)
	assert.Len(t, ar.Samples, 1)
	assert.InDelta(t, 90, ar.MeanCompliance, 0.01)

	feedback, ok := result.PhaseResults[PhaseFeedback].(string)
	require.True(t, ok)
	assert.Contains(t, feedback, "Wrap errors with context")
	assert.Contains(t, feedback, "mean compliance")
}

func TestWorkflow_AnalysisSkippedWithoutSamples(t *testing.T) {
	rs := happyResearch()
	o := newTestOrchestrator(t, rs, &fakeGen{content: validatorJSON})

	id, err := o.Start(&Request{Description: "error handling standard"})
	require.NoError(t, err)

	result := waitTerminal(t, o, id)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.NotContains(t, result.PhaseResults, PhaseAnalysis)
	assert.Equal(t, 0, rs.recommend)

	feedback := result.PhaseResults[PhaseFeedback].(string)
	assert.Contains(t, feedback, "skipped")
}

func TestWorkflow_CancelMidFlight(t *testing.T) {
	rs := happyResearch()
	rs.blockResearch = make(chan struct{})
	o := newTestOrchestrator(t, rs, &fakeGen{content: validatorJSON})

	id, err := o.Start(&Request{Description: "will be cancelled"})
	require.NoError(t, err)

	// Let the workflow reach the blocking research call.
	require.Eventually(t, func() bool {
		report, err := o.Status(id)
		return err == nil && report.Phase == PhaseResearch
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, o.Cancel(id))

	result := waitTerminal(t, o, id)
	assert.Equal(t, StatusCancelled, result.Status)
	assert.Equal(t, PhaseResearch, result.Phase)

	// Initialization completed before cancellation and is retained.
	assert.Contains(t, result.PhaseResults, PhaseInitialization)
	assert.NotContains(t, result.PhaseResults, PhaseResearch)
}

func TestWorkflow_ResearchFailurePreservesPartials(t *testing.T) {
	rs := happyResearch()
	rs.researchErr = errors.New("all providers down")
	o := newTestOrchestrator(t, rs, &fakeGen{content: validatorJSON})

	id, err := o.Start(&Request{Description: "doomed"})
	require.NoError(t, err)

	result := waitTerminal(t, o, id)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, PhaseResearch, result.Phase)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "all providers down")

	assert.Contains(t, result.PhaseResults, PhaseInitialization)
	assert.NotContains(t, result.PhaseResults, PhaseDocumentation)
}

func TestWorkflow_ValidationBelowThresholdWarns(t *testing.T) {
	o := newTestOrchestrator(t, happyResearch(),
		&fakeGen{content: `{"score": 50, "issues": ["too vague"], "recommendations": []}`})

	id, err := o.Start(&Request{Description: "weak standard"})
	require.NoError(t, err)

	result := waitTerminal(t, o, id)
	assert.Equal(t, StatusCompleted, result.Status)

	vr := result.PhaseResults[PhaseValidation].(*ValidationResult)
	assert.False(t, vr.Passed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "below passing threshold")
}

func TestWorkflow_AllValidatorsFailingFailsPhase(t *testing.T) {
	o := newTestOrchestrator(t, happyResearch(), &fakeGen{err: errors.New("quota exhausted")})

	id, err := o.Start(&Request{Description: "no generator"})
	require.NoError(t, err)

	result := waitTerminal(t, o, id)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, PhaseDocumentation, result.Phase)
}

func TestWorkflow_NoSinksFailsDeployment(t *testing.T) {
	o := NewOrchestrator(happyResearch(), &fakeGen{content: validatorJSON}, prompt.NewStore(),
		WithLogger(testLogger()))

	id, err := o.Start(&Request{Description: "nowhere to deploy"})
	require.NoError(t, err)

	result := waitTerminal(t, o, id)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, PhaseDeployment, result.Phase)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no deployment sinks")
}

func TestWorkflow_SingleSinkFailureStillDeploys(t *testing.T) {
	graphStore := &fakeGraphStore{err: errors.New("graph unavailable")}
	o := newTestOrchestrator(t, happyResearch(), &fakeGen{content: validatorJSON},
		WithGraph(graphStore))

	id, err := o.Start(&Request{Description: "partial deploy"})
	require.NoError(t, err)

	result := waitTerminal(t, o, id)
	assert.Equal(t, StatusCompleted, result.Status)

	dr := result.PhaseResults[PhaseDeployment].(*DeploymentResult)
	require.Len(t, dr.Sinks, 2)
	okBySink := make(map[string]bool)
	for _, sink := range dr.Sinks {
		okBySink[sink.Sink] = sink.OK
	}
	assert.True(t, okBySink["filesystem"])
	assert.False(t, okBySink["graph"])
	assert.Empty(t, dr.StandardID)
}

func TestWorkflow_StartRejectsEmptyDescription(t *testing.T) {
	o := newTestOrchestrator(t, happyResearch(), &fakeGen{content: validatorJSON})

	_, err := o.Start(&Request{Description: "   "})
	assert.Error(t, err)
	_, err = o.Start(nil)
	assert.Error(t, err)
}

func TestWorkflow_StatusAndCancelErrors(t *testing.T) {
	o := newTestOrchestrator(t, happyResearch(), &fakeGen{content: validatorJSON})

	_, err := o.Status("missing")
	assert.Error(t, err)
	assert.Error(t, o.Cancel("missing"))

	id, err := o.Start(&Request{Description: "finishes"})
	require.NoError(t, err)
	waitTerminal(t, o, id)

	err = o.Cancel(id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already finished")
}

func TestWorkflow_StatisticsAndCleanup(t *testing.T) {
	o := newTestOrchestrator(t, happyResearch(), &fakeGen{content: validatorJSON})

	var ids []string
	for range 3 {
		id, err := o.Start(&Request{Description: "counted"})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitTerminal(t, o, id)
	}

	stats := o.Statistics()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Completed)
	assert.Equal(t, 0, stats.Active)

	// Pretend a day has passed.
	o.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	removed := o.CleanupResults(time.Hour)
	assert.Equal(t, 3, removed)

	_, err := o.Status(ids[0])
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "wrap-errors-with-context", slugify("Wrap Errors, With Context!"))
	assert.Equal(t, "standard", slugify("???"))
}
