package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/c360studio/standards/graph"
	"github.com/c360studio/standards/research"
	"github.com/c360studio/standards/standards"
	"github.com/c360studio/standards/workflow"
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": ServiceName,
		"version": s.cfg.Version,
		"status":  "ok",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	collaborators := map[string]string{}
	healthy := true

	report := func(name string, ok bool) {
		if ok {
			collaborators[name] = "ok"
		} else {
			collaborators[name] = "unavailable"
			healthy = false
		}
	}

	report("graph", s.store.Healthy())
	for name, probe := range s.probes {
		report(name, probe())
	}

	status := "ok"
	if !healthy {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"collaborators": collaborators,
	})
}

// ---------------------------------------------------------------------------
// Standards
// ---------------------------------------------------------------------------

type researchRequest struct {
	Topic         string   `json:"topic"`
	Category      string   `json:"category"`
	Language      string   `json:"language,omitempty"`
	ReferenceURLs []string `json:"reference_urls,omitempty"`
	AutoApprove   bool     `json:"auto_approve,omitempty"`
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "topic is required")
		return
	}

	result, err := s.researcher.Research(r.Context(), &research.Request{
		Topic:         req.Topic,
		Language:      req.Language,
		Category:      standards.ParseCategory(req.Category),
		ReferenceURLs: req.ReferenceURLs,
	})
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "research_failed", err.Error())
		return
	}

	response := map[string]any{
		"standard":   result.Draft,
		"references": len(result.References),
		"provider":   result.Provider,
		"approved":   false,
	}
	if req.AutoApprove {
		created, err := s.store.UpsertStandard(r.Context(), result.Draft)
		if err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "graph_unavailable", err.Error())
			return
		}
		response["standard"] = created
		response["approved"] = true
	}
	writeJSON(w, http.StatusOK, response)
}

type recommendationsRequest struct {
	Code              string `json:"code"`
	Language          string `json:"language,omitempty"`
	PriorityThreshold string `json:"priority_threshold,omitempty"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "code is required")
		return
	}

	applicable := s.store.FindByCriteria(r.Context(), graph.Criteria{
		Language:   strings.ToLower(req.Language),
		ActiveOnly: true,
	})

	analysis, err := s.researcher.Recommend(r.Context(), req.Code, req.Language, applicable)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "analysis_failed", err.Error())
		return
	}

	recommendations := analysis.Recommendations
	if req.PriorityThreshold != "" {
		minRank := standards.ParseSeverity(req.PriorityThreshold).Rank()
		filtered := recommendations[:0]
		for _, rec := range recommendations {
			if rec.Severity.Rank() >= minRank {
				filtered = append(filtered, rec)
			}
		}
		recommendations = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"language":        analysis.Language,
		"summary":         analysis.Summary,
		"compliance":      analysis.Compliance,
		"recommendations": recommendations,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var draft standards.Draft
	if err := decodeBody(w, r, &draft); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if draft.Name == "" || draft.Description == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "name and description are required")
		return
	}

	result, err := workflow.ValidateDraft(r.Context(), s.gen, &draft)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "validation_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListStandards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	crit := graph.Criteria{
		Language:   strings.ToLower(q.Get("language")),
		Category:   standards.Category(strings.ToLower(q.Get("category"))),
		ActiveOnly: q.Get("active") != "false",
	}

	limit := queryInt(q.Get("limit"), 50)
	offset := queryInt(q.Get("offset"), 0)

	all := s.store.FindByCriteria(r.Context(), crit)
	total := len(all)

	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"standards": all[offset:end],
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (s *Server) handleGetStandard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	std, err := s.store.GetStandard(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "graph_unavailable", err.Error())
		return
	}
	if std == nil {
		writeError(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("standard %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, std)
}

type updateStandardRequest struct {
	Description *string             `json:"description,omitempty"`
	Severity    *string             `json:"severity,omitempty"`
	Version     *string             `json:"version,omitempty"`
	Examples    []standards.Example `json:"examples,omitempty"`
}

func (s *Server) handleUpdateStandard(w http.ResponseWriter, r *http.Request) {
	var req updateStandardRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	id := r.PathValue("id")
	current, err := s.store.GetStandard(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "graph_unavailable", err.Error())
		return
	}
	if current == nil {
		writeError(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("standard %s not found", id))
		return
	}

	draft := &standards.Draft{
		Name:        current.Name,
		Language:    current.Language,
		Category:    current.Category,
		Severity:    current.Severity,
		Description: current.Description,
		Examples:    current.Examples,
		Version:     standards.BumpVersion(current.Version, standards.BumpPatch),
	}
	if req.Description != nil {
		draft.Description = *req.Description
	}
	if req.Severity != nil {
		draft.Severity = standards.ParseSeverity(*req.Severity)
	}
	if req.Version != nil {
		draft.Version = *req.Version
	}
	if req.Examples != nil {
		draft.Examples = req.Examples
	}

	updated, err := s.store.UpsertStandard(r.Context(), draft)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "graph_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteStandard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeactivateStandard(r.Context(), id); err != nil {
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// ---------------------------------------------------------------------------
// Agent
// ---------------------------------------------------------------------------

type agentSearchRequest struct {
	Query     string  `json:"query"`
	Language  string  `json:"language,omitempty"`
	Category  string  `json:"category,omitempty"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Context   string  `json:"context,omitempty"`
}

func (s *Server) handleAgentSearch(w http.ResponseWriter, r *http.Request) {
	var req agentSearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "query is required")
		return
	}

	query := req.Query
	if req.Context != "" {
		query = query + " " + req.Context
	}

	results := s.store.SemanticSearch(r.Context(), query, graph.SearchOptions{
		Language:  strings.ToLower(req.Language),
		Category:  standards.Category(strings.ToLower(req.Category)),
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"results": results,
		"total":   len(results),
	})
}

type agentAnalyzeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
	Focus    string `json:"focus,omitempty"`
	Context  string `json:"context,omitempty"`
}

func (s *Server) handleAgentAnalyze(w http.ResponseWriter, r *http.Request) {
	var req agentAnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "code is required")
		return
	}

	applicable := s.store.FindByCriteria(r.Context(), graph.Criteria{
		Language:   strings.ToLower(req.Language),
		ActiveOnly: true,
	})

	analysis, err := s.researcher.Recommend(r.Context(), req.Code, req.Language, applicable)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "analysis_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// ---------------------------------------------------------------------------
// Workflow
// ---------------------------------------------------------------------------

func (s *Server) handleWorkflowStart(w http.ResponseWriter, r *http.Request) {
	if s.flow == nil {
		writeError(w, r, http.StatusServiceUnavailable, "workflow_unavailable", "workflow engine is not configured")
		return
	}

	var req workflow.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if user, ok := userFrom(r.Context()); ok && req.UserID == "" {
		req.UserID = user.ID
	}

	id, err := s.flow.Start(&req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflow_id": id, "status": workflow.StatusPending})
}

func (s *Server) workflowReport(w http.ResponseWriter, r *http.Request) (*workflow.StatusReport, bool) {
	if s.flow == nil {
		writeError(w, r, http.StatusServiceUnavailable, "workflow_unavailable", "workflow engine is not configured")
		return nil, false
	}
	report, err := s.flow.Status(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
		return nil, false
	}
	return report, true
}

func (s *Server) handleWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	report, ok := s.workflowReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleWorkflowResults(w http.ResponseWriter, r *http.Request) {
	report, ok := s.workflowReport(w, r)
	if !ok {
		return
	}
	if report.Result == nil {
		writeError(w, r, http.StatusNotFound, "not_ready", "workflow has not finished")
		return
	}
	writeJSON(w, http.StatusOK, report.Result)
}

func (s *Server) handleWorkflowReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.workflowReport(w, r)
	if !ok {
		return
	}
	if report.Result == nil {
		writeError(w, r, http.StatusNotFound, "not_ready", "workflow has not finished")
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(markdownReport(report.Result)))
		return
	}
	writeJSON(w, http.StatusOK, report.Result)
}

func (s *Server) handleWorkflowCancel(w http.ResponseWriter, r *http.Request) {
	if s.flow == nil {
		writeError(w, r, http.StatusServiceUnavailable, "workflow_unavailable", "workflow engine is not configured")
		return
	}
	id := r.PathValue("id")
	if err := s.flow.Cancel(id); err != nil {
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflow_id": id, "cancelled": true})
}

// markdownReport renders a terminal workflow result as markdown.
func markdownReport(result *workflow.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Workflow %s\n\n", result.WorkflowID)
	fmt.Fprintf(&b, "- Status: %s\n- Final phase: %s\n- Duration: %s\n\n",
		result.Status, result.Phase, result.ExecutionTime)

	if feedback, ok := result.PhaseResults[workflow.PhaseFeedback].(string); ok {
		b.WriteString("## Summary\n\n")
		b.WriteString(feedback)
		b.WriteString("\n")
	}
	if len(result.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, e := range result.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	if len(result.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(&b, "- %s\n", warning)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		writeError(w, r, http.StatusServiceUnavailable, "sync_unavailable", "sync engine is not configured")
		return
	}
	status, err := s.sync.Status(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		writeError(w, r, http.StatusServiceUnavailable, "sync_unavailable", "sync engine is not configured")
		return
	}
	force := r.URL.Query().Get("force") == "true"

	stats, err := s.sync.SyncAll(r.Context(), force)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "sync_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
