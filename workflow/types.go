// Package workflow runs the six-phase standard creation state machine:
// initialization, research, documentation, validation, deployment,
// conditional analysis, feedback. Workflows execute in background
// goroutines owned by the Orchestrator and terminate in exactly one of
// completed, failed, or cancelled.
package workflow

import (
	"time"

	"github.com/c360studio/standards/research"
	"github.com/c360studio/standards/standards"
)

// Phase is a step in the workflow state machine.
type Phase string

const (
	PhaseInitialization Phase = "initialization"
	PhaseResearch       Phase = "research"
	PhaseDocumentation  Phase = "documentation"
	PhaseValidation     Phase = "validation"
	PhaseDeployment     Phase = "deployment"
	PhaseAnalysis       Phase = "analysis"
	PhaseFeedback       Phase = "feedback"
	PhaseCompletion     Phase = "completion"
)

// Status is the lifecycle state of a workflow.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Request starts a workflow.
type Request struct {
	// Description is the free-text standard request.
	Description string `json:"description"`

	UserID         string            `json:"user_id,omitempty"`
	ProjectContext map[string]string `json:"project_context,omitempty"`
	Preferences    map[string]string `json:"preferences,omitempty"`

	// CodeSamples trigger the analysis phase when present.
	CodeSamples []string `json:"code_samples,omitempty"`

	// ReferenceURLs feed research enrichment.
	ReferenceURLs []string `json:"reference_urls,omitempty"`
}

// Result is the retained outcome of a terminal workflow. Partial phase
// results survive failure and cancellation.
type Result struct {
	WorkflowID    string         `json:"workflow_id"`
	Status        Status         `json:"status"`
	Phase         Phase          `json:"phase"`
	PhaseResults  map[Phase]any  `json:"phase_results"`
	Errors        []string       `json:"errors,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time"`
	CompletedAt   time.Time      `json:"completed_at"`
}

// StatusReport answers a status query for active or terminal workflows.
type StatusReport struct {
	WorkflowID string    `json:"workflow_id"`
	Status     Status    `json:"status"`
	Phase      Phase     `json:"phase"`
	StartedAt  time.Time `json:"started_at"`
	Result     *Result   `json:"result,omitempty"`
}

// Statistics summarizes orchestrator activity.
type Statistics struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// InitializationResult is the first phase's output.
type InitializationResult struct {
	Description     string `json:"description"`
	CodeSampleCount int    `json:"code_sample_count"`
	ReferenceCount  int    `json:"reference_count"`
	AnalysisPlanned bool   `json:"analysis_planned"`
}

// ResearchResult pairs the classification with the drafted standard.
type ResearchResult struct {
	Classification *research.Classification `json:"analysis"`
	Draft          *standards.Draft         `json:"standard"`
	Provider       string                   `json:"provider,omitempty"`
}

// DocumentationBundle is the generated documentation set.
type DocumentationBundle struct {
	Guide          string `json:"guide"`
	QuickReference string `json:"quick_reference"`
	Checklist      string `json:"implementation_checklist"`
	Onboarding     string `json:"onboarding_guide"`
	Compliance     string `json:"compliance_checklist"`
}

// ValidatorReport is one validator's verdict.
type ValidatorReport struct {
	Validator       string   `json:"validator"`
	Score           float64  `json:"score"`
	Issues          []string `json:"issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// ValidationResult aggregates the five validators.
type ValidationResult struct {
	Reports []ValidatorReport `json:"reports"`
	Score   float64           `json:"score"`
	Passed  bool              `json:"validation_passed"`
}

// SinkResult is one deployment target's outcome.
type SinkResult struct {
	Sink       string `json:"sink"`
	OK         bool   `json:"ok"`
	Identifier string `json:"identifier,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DeploymentResult collects per-sink outcomes.
type DeploymentResult struct {
	Sinks      []SinkResult `json:"sinks"`
	StandardID string       `json:"standard_id,omitempty"`
}

// SampleAnalysis is the analysis of one submitted code sample.
type SampleAnalysis struct {
	Language        string                    `json:"language"`
	Compliance      float64                   `json:"compliance"`
	Recommendations []research.Recommendation `json:"recommendations"`
}

// AnalysisResult aggregates the analysis phase.
type AnalysisResult struct {
	Samples        []SampleAnalysis     `json:"samples"`
	MeanCompliance float64              `json:"mean_compliance"`
	TopCategories  []standards.Category `json:"top_categories"`
}
