package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/standards/graph"
	"github.com/c360studio/standards/llm"
	"github.com/c360studio/standards/research"
	"github.com/c360studio/standards/standards"
	"github.com/c360studio/standards/syncer"
	"github.com/c360studio/standards/workflow"
)

// fakeStore is an in-memory StandardsStore.
type fakeStore struct {
	mu        sync.Mutex
	byID      map[string]*standards.Standard
	healthy   bool
	nextID    int
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[string]*standards.Standard), healthy: true}
}

func (s *fakeStore) add(std *standards.Standard) *standards.Standard {
	s.mu.Lock()
	defer s.mu.Unlock()
	if std.ID == "" {
		s.nextID++
		std.ID = fmt.Sprintf("standard:%d", s.nextID)
	}
	std.Active = true
	s.byID[std.ID] = std
	return std
}

func (s *fakeStore) SemanticSearch(_ context.Context, query string, opts graph.SearchOptions) []graph.SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var results []graph.SearchResult
	for _, std := range s.byID {
		if !std.Active {
			continue
		}
		if strings.Contains(strings.ToLower(std.Name), strings.ToLower(query)) {
			results = append(results, graph.SearchResult{Standard: std, Score: 1.0})
		}
	}
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

func (s *fakeStore) FindByCriteria(_ context.Context, crit graph.Criteria) []*standards.Standard {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*standards.Standard
	for _, std := range s.byID {
		if crit.ActiveOnly && !std.Active {
			continue
		}
		if crit.Language != "" && std.Language != crit.Language {
			continue
		}
		if crit.Category != "" && std.Category != crit.Category {
			continue
		}
		out = append(out, std)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *fakeStore) GetStandard(_ context.Context, id string) (*standards.Standard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Absent is (nil, nil), matching the graph client contract.
	return s.byID[id], nil
}

func (s *fakeStore) UpsertStandard(_ context.Context, draft *standards.Draft) (*standards.Standard, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	s.mu.Lock()
	var existing *standards.Standard
	for _, std := range s.byID {
		if std.Name == draft.Name && std.Language == draft.Language && std.Category == draft.Category {
			existing = std
			break
		}
	}
	s.mu.Unlock()

	std := &standards.Standard{
		Name:        draft.Name,
		Language:    draft.Language,
		Category:    draft.Category,
		Severity:    draft.Severity,
		Description: draft.Description,
		Examples:    draft.Examples,
		Version:     draft.Version,
	}
	if existing != nil {
		std.ID = existing.ID
	}
	return s.add(std), nil
}

func (s *fakeStore) DeactivateStandard(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	std, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("standard %s not found", id)
	}
	std.Active = false
	return nil
}

func (s *fakeStore) Healthy() bool { return s.healthy }

// fakeResearcher scripts the research surface.
type fakeResearcher struct {
	result   *research.Result
	analysis *research.Analysis
	err      error
}

func (f *fakeResearcher) Research(_ context.Context, _ *research.Request) (*research.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeResearcher) Recommend(_ context.Context, _, _ string, _ []*standards.Standard) (*research.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

// fakeGen answers every LLM call with fixed content.
type fakeGen struct {
	content string
	err     error
}

func (g *fakeGen) Generate(_ context.Context, _ *llm.Request) (*llm.Response, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &llm.Response{Content: g.content, Provider: "fake"}, nil
}

// fakeFlow scripts the workflow surface.
type fakeFlow struct {
	mu        sync.Mutex
	started   []*workflow.Request
	report    *workflow.StatusReport
	startErr  error
	cancelErr error
}

func (f *fakeFlow) Start(req *workflow.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, req)
	return "wf-1", nil
}

func (f *fakeFlow) Status(id string) (*workflow.StatusReport, error) {
	if f.report == nil {
		return nil, fmt.Errorf("workflow %s not found", id)
	}
	return f.report, nil
}

func (f *fakeFlow) Cancel(string) error { return f.cancelErr }

func (f *fakeFlow) Statistics() workflow.Statistics { return workflow.Statistics{} }

// fakeSync scripts the sync surface.
type fakeSync struct {
	mu     sync.Mutex
	forced []bool
	stats  *syncer.Stats
	status *syncer.Status
}

func (f *fakeSync) SyncAll(_ context.Context, force bool) (*syncer.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, force)
	return f.stats, nil
}

func (f *fakeSync) Status(context.Context) (*syncer.Status, error) { return f.status, nil }

func testServerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testValidatorJSON = `{"score": 88, "issues": [], "recommendations": []}`

type serverParts struct {
	server     *Server
	store      *fakeStore
	researcher *fakeResearcher
	flow       *fakeFlow
	sync       *fakeSync
}

func newTestServer(cfg Config) *serverParts {
	// A zero limit rejects every request in production; tests that do
	// not pin a limit get a roomy one instead.
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = 1000
	}
	store := newFakeStore()
	researcher := &fakeResearcher{
		result: &research.Result{
			Draft: &standards.Draft{
				Name:        "Use parameterized queries",
				Language:    "go",
				Category:    standards.CategorySecurity,
				Severity:    standards.SeverityCritical,
				Description: "Bind every user value.",
				Version:     standards.DefaultVersion,
			},
			Provider: "fake",
		},
		analysis: &research.Analysis{
			Language:   "go",
			Summary:    "findings",
			Compliance: 70,
			Recommendations: []research.Recommendation{
				{Standard: "A", Severity: standards.SeverityCritical, Message: "m1"},
				{Standard: "B", Severity: standards.SeverityLow, Message: "m2"},
			},
		},
	}
	flow := &fakeFlow{}
	syncSvc := &fakeSync{
		stats:  &syncer.Stats{FilesScanned: 2, Added: 1},
		status: &syncer.Status{FilesTracked: 2, Synchronized: true},
	}

	srv := NewServer(cfg, store, researcher, &fakeGen{content: testValidatorJSON},
		WithLogger(testServerLogger()),
		WithWorkflow(flow),
		WithSync(syncSvc),
	)
	return &serverParts{server: srv, store: store, researcher: researcher, flow: flow, sync: syncSvc}
}

// do runs one request through the full middleware chain.
func do(s *Server, method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "192.0.2.1:4000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// fixed clock helper for rate-limit and token-expiry tests.
func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	var mu sync.Mutex
	current := start
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(d)
	}
	return now, advance
}
