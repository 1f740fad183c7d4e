package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360studio/standards/graph"
	"github.com/c360studio/standards/research"
	"github.com/c360studio/standards/standards"
	"github.com/c360studio/standards/syncer"
	"github.com/c360studio/standards/workflow"
)

// ServiceName identifies the service in the root endpoint.
const ServiceName = "standards-service"

// StandardsStore is the graph surface the handlers use. Satisfied by
// *graph.Client. GetStandard reports absence as (nil, nil); an error
// means the lookup itself failed.
type StandardsStore interface {
	SemanticSearch(ctx context.Context, query string, opts graph.SearchOptions) []graph.SearchResult
	FindByCriteria(ctx context.Context, crit graph.Criteria) []*standards.Standard
	GetStandard(ctx context.Context, id string) (*standards.Standard, error)
	UpsertStandard(ctx context.Context, draft *standards.Draft) (*standards.Standard, error)
	DeactivateStandard(ctx context.Context, id string) error
	Healthy() bool
}

// ResearchService drafts standards and analyzes code. Satisfied by
// *research.Researcher.
type ResearchService interface {
	Research(ctx context.Context, req *research.Request) (*research.Result, error)
	Recommend(ctx context.Context, code, language string, applicable []*standards.Standard) (*research.Analysis, error)
}

// WorkflowService runs standard-creation workflows. Satisfied by
// *workflow.Orchestrator.
type WorkflowService interface {
	Start(req *workflow.Request) (string, error)
	Status(id string) (*workflow.StatusReport, error)
	Cancel(id string) error
	Statistics() workflow.Statistics
}

// SyncService exposes the file sync engine. Satisfied by *syncer.Syncer.
type SyncService interface {
	SyncAll(ctx context.Context, force bool) (*syncer.Stats, error)
	Status(ctx context.Context) (*syncer.Status, error)
}

// Config holds the HTTP server settings.
type Config struct {
	Addr string

	// RequestsPerMinute is the global per-client rate limit. Zero
	// rejects every request; a negative value disables limiting.
	RequestsPerMinute int

	// EndpointLimits override the global limit for specific paths.
	EndpointLimits map[string]int

	// SlowThreshold flags requests slower than this at warning level.
	// Zero disables the check.
	SlowThreshold time.Duration

	Auth AuthConfig

	// Version is reported by the root endpoint.
	Version string
}

// Server is the HTTP front of the standards service.
type Server struct {
	cfg        Config
	store      StandardsStore
	researcher ResearchService
	gen        workflow.Generator
	flow       WorkflowService
	sync       SyncService
	probes     map[string]func() bool

	auth    *authenticator
	limiter *limiter
	metrics *metrics
	logger  *slog.Logger
	now     func() time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWorkflow wires the workflow endpoints.
func WithWorkflow(flow WorkflowService) ServerOption {
	return func(s *Server) { s.flow = flow }
}

// WithSync wires the sync endpoints.
func WithSync(sync SyncService) ServerOption {
	return func(s *Server) { s.sync = sync }
}

// WithProbe adds a named health probe reported by the health endpoint.
func WithProbe(name string, fn func() bool) ServerOption {
	return func(s *Server) { s.probes[name] = fn }
}

// NewServer assembles the server. The workflow and sync surfaces are
// optional; their endpoints report 503 when absent.
func NewServer(cfg Config, store StandardsStore, researcher ResearchService, gen workflow.Generator, opts ...ServerOption) *Server {
	s := &Server{
		cfg:        cfg,
		store:      store,
		researcher: researcher,
		gen:        gen,
		probes:     make(map[string]func() bool),
		metrics:    newMetrics(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	s.auth = newAuthenticator(cfg.Auth, func() time.Time { return s.now() })
	s.limiter = newLimiter(func() time.Time { return s.now() })
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueToken signs a JWT for the user with the configured secret.
func (s *Server) IssueToken(userID string, ttl time.Duration, extra map[string]any) (string, error) {
	return s.auth.IssueToken(userID, ttl, extra)
}

// Handler returns the full middleware-wrapped handler:
// logging -> rate limit -> auth -> mux.
func (s *Server) Handler() http.Handler {
	return chain(s.routes(), s.logging, s.rateLimit, s.requireAuth)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.handler())

	mux.HandleFunc("POST /api/v1/standards/research", s.handleResearch)
	mux.HandleFunc("POST /api/v1/standards/recommendations", s.handleRecommendations)
	mux.HandleFunc("POST /api/v1/standards/validate", s.handleValidate)
	mux.HandleFunc("GET /api/v1/standards/list", s.handleListStandards)
	mux.HandleFunc("GET /api/v1/standards/{id}", s.handleGetStandard)
	mux.HandleFunc("PUT /api/v1/standards/{id}", s.handleUpdateStandard)
	mux.HandleFunc("DELETE /api/v1/standards/{id}", s.handleDeleteStandard)

	mux.HandleFunc("POST /api/v1/agent/search-standards", s.handleAgentSearch)
	mux.HandleFunc("POST /api/v1/agent/analyze-code", s.handleAgentAnalyze)

	mux.HandleFunc("POST /api/v1/workflow/start", s.handleWorkflowStart)
	mux.HandleFunc("GET /api/v1/workflow/{id}/status", s.handleWorkflowStatus)
	mux.HandleFunc("GET /api/v1/workflow/{id}/results", s.handleWorkflowResults)
	mux.HandleFunc("GET /api/v1/workflow/{id}/report", s.handleWorkflowReport)
	mux.HandleFunc("DELETE /api/v1/workflow/{id}/cancel", s.handleWorkflowCancel)

	mux.HandleFunc("GET /api/v1/sync/status", s.handleSyncStatus)
	mux.HandleFunc("POST /api/v1/sync/trigger", s.handleSyncTrigger)

	// JSON 404 for everything unmatched.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "unknown resource")
	})

	return mux
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("http server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
