// Package graph provides the typed projection client for the knowledge
// graph. Writes publish entity triples to the graph ingest subject over
// JetStream; reads go through the graph gateway's query endpoint.
package graph

import (
	"errors"
	"time"
)

// Subjects for graph ingestion.
const (
	IngestSubject = "graph.ingest.entity"
	DeleteSubject = "graph.ingest.delete"
)

// Source identifies this service in published triples.
const Source = "standards.service"

// Triple is a single subject-predicate-object assertion.
type Triple struct {
	Subject    string    `json:"subject"`
	Predicate  string    `json:"predicate"`
	Object     any       `json:"object"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
}

// EntityMessage is the wire format for graph entity ingestion.
type EntityMessage struct {
	ID        string    `json:"id"`
	Triples   []Triple  `json:"triples"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the message is publishable.
func (m *EntityMessage) Validate() error {
	if m.ID == "" {
		return errors.New("entity ID is required")
	}
	if len(m.Triples) == 0 {
		return errors.New("at least one triple is required")
	}
	return nil
}

// DeleteMessage is the wire format for entity removal.
type DeleteMessage struct {
	ID        string    `json:"id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// Entity predicates. Kept flat and dotted in the style of the wider graph
// vocabulary so cross-service queries stay uniform.
const (
	PredicateType = "entity.type"

	PredicateStandardName        = "standard.name"
	PredicateStandardLanguage    = "standard.language"
	PredicateStandardCategory    = "standard.category"
	PredicateStandardSeverity    = "standard.severity"
	PredicateStandardDescription = "standard.description"
	PredicateStandardExamples    = "standard.examples"
	PredicateStandardVersion     = "standard.version"
	PredicateStandardActive      = "standard.active"
	PredicateStandardFileSource  = "standard.file_source"
	PredicateStandardCreatedAt   = "standard.created_at"
	PredicateStandardUpdatedAt   = "standard.updated_at"

	PredicateHistoryTitle           = "history.title"
	PredicateHistoryVersion         = "history.version"
	PredicateHistoryPreviousVersion = "history.previous_version"
	PredicateHistoryContent         = "history.content"
	PredicateHistoryChangelog       = "history.changelog"
	PredicateHistoryArchivedAt      = "history.archived_at"

	PredicateViolationStandard   = "violation.standard"
	PredicateViolationFilePath   = "violation.file_path"
	PredicateViolationLine       = "violation.line"
	PredicateViolationColumn     = "violation.column"
	PredicateViolationMessage    = "violation.message"
	PredicateViolationSeverity   = "violation.severity"
	PredicateViolationSuggestion = "violation.suggestion"
	PredicateViolationProject    = "violation.project"
	PredicateViolationTimestamp  = "violation.timestamp"

	PredicatePatternForm        = "pattern.form"
	PredicatePatternLanguage    = "pattern.language"
	PredicatePatternDescription = "pattern.description"
	PredicatePatternCategory    = "pattern.category"
	PredicatePatternFrequency   = "pattern.frequency"
	PredicatePatternFirstSeen   = "pattern.first_seen"
	PredicatePatternLastSeen    = "pattern.last_seen"
	PredicatePatternEvolvedInto = "pattern.evolved_into"

	PredicateProjectName = "project.name"
)

// Entity type values.
const (
	TypeStandard  = "standard"
	TypeHistory   = "standard_history"
	TypeViolation = "violation"
	TypePattern   = "code_pattern"
	TypeProject   = "project"
)
