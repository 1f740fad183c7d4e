package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/standards/cache"
	"github.com/c360studio/standards/llm"
	"github.com/c360studio/standards/prompt"
	"github.com/c360studio/standards/research"
	"github.com/c360studio/standards/standards"
)

// ResearchService is the research surface the orchestrator composes.
// Satisfied by *research.Researcher.
type ResearchService interface {
	ResearchFromText(ctx context.Context, request string, referenceURLs []string) (*research.Result, error)
	Recommend(ctx context.Context, code, language string, applicable []*standards.Standard) (*research.Analysis, error)
}

// Generator produces LLM responses for documentation and validation.
type Generator interface {
	Generate(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// GraphStore is the deployment target in the graph. Satisfied by
// *graph.Client.
type GraphStore interface {
	UpsertStandard(ctx context.Context, draft *standards.Draft) (*standards.Standard, error)
}

// active tracks one running workflow.
type active struct {
	id        string
	status    Status
	phase     Phase
	startedAt time.Time
	cancel    context.CancelFunc
	request   *Request
}

// Orchestrator owns workflow contexts and retains terminal results.
type Orchestrator struct {
	research  ResearchService
	gen       Generator
	prompts   *prompt.Store
	graph     GraphStore
	cache     cache.Cache
	outputDir string
	extractor *research.PatternExtractor
	patterns  research.PatternStore
	logger    *slog.Logger

	mu      sync.Mutex
	running map[string]*active
	results map[string]*Result

	wg  sync.WaitGroup
	now func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithGraph enables the graph deployment sink.
func WithGraph(store GraphStore) Option {
	return func(o *Orchestrator) { o.graph = store }
}

// WithCache enables the cache deployment sink.
func WithCache(c cache.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithOutputDir enables the filesystem deployment sink.
func WithOutputDir(dir string) Option {
	return func(o *Orchestrator) { o.outputDir = dir }
}

// WithPatternRecording enables tree-sitter pattern extraction during the
// analysis phase.
func WithPatternRecording(extractor *research.PatternExtractor, store research.PatternStore) Option {
	return func(o *Orchestrator) {
		o.extractor = extractor
		o.patterns = store
	}
}

// NewOrchestrator creates an orchestrator. At least one deployment sink
// should be configured or the deployment phase will fail.
func NewOrchestrator(rs ResearchService, gen Generator, prompts *prompt.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		research: rs,
		gen:      gen,
		prompts:  prompts,
		logger:   slog.Default(),
		running:  make(map[string]*active),
		results:  make(map[string]*Result),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start validates the request, registers a pending workflow, launches
// its background goroutine, and returns the workflow id immediately.
func (o *Orchestrator) Start(req *Request) (string, error) {
	if req == nil || strings.TrimSpace(req.Description) == "" {
		return "", fmt.Errorf("workflow description is required")
	}

	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())
	wf := &active{
		id:        id,
		status:    StatusPending,
		phase:     PhaseInitialization,
		startedAt: o.now().UTC(),
		cancel:    cancel,
		request:   req,
	}

	o.mu.Lock()
	o.running[id] = wf
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		o.run(runCtx, wf)
	}()

	o.logger.Info("workflow started", "workflow_id", id, "code_samples", len(req.CodeSamples))
	return id, nil
}

// phaseFunc runs one phase and returns its result payload.
type phaseFunc func(ctx context.Context, wf *active, results map[Phase]any) (any, error)

// run drives the state machine. Cancellation is honored at every phase
// boundary; a phase error terminates the workflow in failed with prior
// partial results preserved.
func (o *Orchestrator) run(ctx context.Context, wf *active) {
	o.setStatus(wf, StatusInProgress)

	results := make(map[Phase]any)
	var warnings []string

	phases := []struct {
		phase Phase
		fn    phaseFunc
		skip  func() bool
	}{
		{PhaseInitialization, o.phaseInitialization, nil},
		{PhaseResearch, o.phaseResearch, nil},
		{PhaseDocumentation, o.phaseDocumentation, nil},
		{PhaseValidation, o.phaseValidation, nil},
		{PhaseDeployment, o.phaseDeployment, nil},
		{PhaseAnalysis, o.phaseAnalysis, func() bool { return len(wf.request.CodeSamples) == 0 }},
		{PhaseFeedback, o.phaseFeedback, nil},
	}

	for _, step := range phases {
		if ctx.Err() != nil {
			o.finish(wf, StatusCancelled, wf.phase, results, nil, warnings)
			return
		}
		if step.skip != nil && step.skip() {
			o.logger.Debug("phase skipped", "workflow_id", wf.id, "phase", step.phase)
			continue
		}

		o.setPhase(wf, step.phase)
		payload, err := step.fn(ctx, wf, results)
		if err != nil {
			if ctx.Err() != nil {
				o.finish(wf, StatusCancelled, step.phase, results, nil, warnings)
				return
			}
			o.finish(wf, StatusFailed, step.phase, results,
				[]string{fmt.Sprintf("%s: %v", step.phase, err)}, warnings)
			return
		}
		results[step.phase] = payload

		if vr, ok := payload.(*ValidationResult); ok && !vr.Passed {
			warnings = append(warnings,
				fmt.Sprintf("validation score %.1f below passing threshold", vr.Score))
		}
	}

	o.setPhase(wf, PhaseCompletion)
	o.finish(wf, StatusCompleted, PhaseCompletion, results, nil, warnings)
}

func (o *Orchestrator) setStatus(wf *active, status Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	wf.status = status
}

func (o *Orchestrator) setPhase(wf *active, phase Phase) {
	o.mu.Lock()
	wf.phase = phase
	o.mu.Unlock()
	o.logger.Debug("phase entered", "workflow_id", wf.id, "phase", phase)
}

// finish records the terminal result and releases the workflow context.
func (o *Orchestrator) finish(wf *active, status Status, phase Phase, results map[Phase]any, errs, warnings []string) {
	done := o.now().UTC()
	result := &Result{
		WorkflowID:    wf.id,
		Status:        status,
		Phase:         phase,
		PhaseResults:  results,
		Errors:        errs,
		Warnings:      warnings,
		ExecutionTime: done.Sub(wf.startedAt),
		CompletedAt:   done,
	}

	o.mu.Lock()
	delete(o.running, wf.id)
	o.results[wf.id] = result
	o.mu.Unlock()

	o.logger.Info("workflow finished",
		"workflow_id", wf.id, "status", status, "phase", phase, "duration", result.ExecutionTime)
}

// Status reports an active or terminal workflow.
func (o *Orchestrator) Status(id string) (*StatusReport, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if wf, ok := o.running[id]; ok {
		return &StatusReport{
			WorkflowID: id,
			Status:     wf.status,
			Phase:      wf.phase,
			StartedAt:  wf.startedAt,
		}, nil
	}
	if result, ok := o.results[id]; ok {
		return &StatusReport{
			WorkflowID: id,
			Status:     result.Status,
			Phase:      result.Phase,
			Result:     result,
		}, nil
	}
	return nil, fmt.Errorf("workflow %s not found", id)
}

// Cancel requests cancellation. The workflow terminates in cancelled at
// the next phase boundary or blocking call.
func (o *Orchestrator) Cancel(id string) error {
	o.mu.Lock()
	wf, ok := o.running[id]
	o.mu.Unlock()

	if !ok {
		if _, terminal := o.terminalResult(id); terminal {
			return fmt.Errorf("workflow %s already finished", id)
		}
		return fmt.Errorf("workflow %s not found", id)
	}

	wf.cancel()
	o.logger.Info("workflow cancellation requested", "workflow_id", id)
	return nil
}

func (o *Orchestrator) terminalResult(id string) (*Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	result, ok := o.results[id]
	return result, ok
}

// Statistics summarizes all workflows seen.
func (o *Orchestrator) Statistics() Statistics {
	o.mu.Lock()
	defer o.mu.Unlock()

	stats := Statistics{Active: len(o.running)}
	stats.Total = len(o.running) + len(o.results)
	for _, result := range o.results {
		switch result.Status {
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// CleanupResults drops terminal results older than keepRecent and
// returns how many were removed.
func (o *Orchestrator) CleanupResults(keepRecent time.Duration) int {
	cutoff := o.now().Add(-keepRecent)

	o.mu.Lock()
	defer o.mu.Unlock()

	removed := 0
	for id, result := range o.results {
		if result.CompletedAt.Before(cutoff) {
			delete(o.results, id)
			removed++
		}
	}
	return removed
}

// Wait blocks until every running workflow has terminated. Shutdown
// helper.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
