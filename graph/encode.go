package graph

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/c360studio/standards/standards"
)

// Entity ID prefixes.
const (
	standardIDPrefix  = "standard:"
	historyIDPrefix   = "history:"
	violationIDPrefix = "violation:"
	patternIDPrefix   = "pattern:"
	projectIDPrefix   = "project:"
)

// standardTriples flattens a standard into its triple set.
func standardTriples(std *standards.Standard, now time.Time) []Triple {
	t := func(predicate string, object any) Triple {
		return Triple{
			Subject:    std.ID,
			Predicate:  predicate,
			Object:     object,
			Source:     Source,
			Timestamp:  now,
			Confidence: 1.0,
		}
	}

	triples := []Triple{
		t(PredicateType, TypeStandard),
		t(PredicateStandardName, std.Name),
		t(PredicateStandardLanguage, std.Language),
		t(PredicateStandardCategory, std.Category.String()),
		t(PredicateStandardSeverity, std.Severity.String()),
		t(PredicateStandardDescription, std.Description),
		t(PredicateStandardVersion, std.Version),
		t(PredicateStandardActive, std.Active),
		t(PredicateStandardCreatedAt, std.CreatedAt.UTC().Format(time.RFC3339)),
		t(PredicateStandardUpdatedAt, std.UpdatedAt.UTC().Format(time.RFC3339)),
	}
	if std.FileSource != "" {
		triples = append(triples, t(PredicateStandardFileSource, std.FileSource))
	}
	if len(std.Examples) > 0 {
		// Examples travel as one JSON-encoded triple; the gateway treats
		// objects as opaque values.
		encoded, err := json.Marshal(std.Examples)
		if err == nil {
			triples = append(triples, t(PredicateStandardExamples, string(encoded)))
		}
	}
	return triples
}

// historyTriples flattens an archived standard version. The entry has no
// domain id of its own; the caller supplies the entity subject.
func historyTriples(subject string, entry *standards.HistoryEntry, now time.Time) []Triple {
	t := func(predicate string, object any) Triple {
		return Triple{
			Subject:    subject,
			Predicate:  predicate,
			Object:     object,
			Source:     Source,
			Timestamp:  now,
			Confidence: 1.0,
		}
	}

	triples := []Triple{
		t(PredicateType, TypeHistory),
		t(PredicateHistoryTitle, entry.Title),
		t(PredicateHistoryVersion, entry.Version),
		t(PredicateHistoryContent, entry.Content),
		t(PredicateHistoryArchivedAt, entry.ArchivedAt.UTC().Format(time.RFC3339)),
	}
	if entry.PreviousVersion != "" {
		triples = append(triples, t(PredicateHistoryPreviousVersion, entry.PreviousVersion))
	}
	if entry.Changelog != "" {
		triples = append(triples, t(PredicateHistoryChangelog, entry.Changelog))
	}
	return triples
}

func violationTriples(v *standards.Violation, now time.Time) []Triple {
	t := func(predicate string, object any) Triple {
		return Triple{
			Subject:    v.ID,
			Predicate:  predicate,
			Object:     object,
			Source:     Source,
			Timestamp:  now,
			Confidence: 1.0,
		}
	}

	triples := []Triple{
		t(PredicateType, TypeViolation),
		t(PredicateViolationStandard, v.StandardID),
		t(PredicateViolationFilePath, v.FilePath),
		t(PredicateViolationLine, v.Line),
		t(PredicateViolationColumn, v.Column),
		t(PredicateViolationMessage, v.Message),
		t(PredicateViolationSeverity, v.Severity.String()),
		t(PredicateViolationTimestamp, v.Timestamp.UTC().Format(time.RFC3339)),
	}
	if v.Suggestion != "" {
		triples = append(triples, t(PredicateViolationSuggestion, v.Suggestion))
	}
	if v.ProjectID != "" {
		triples = append(triples, t(PredicateViolationProject, v.ProjectID))
	}
	return triples
}

func patternTriples(p *standards.CodePattern, now time.Time) []Triple {
	t := func(predicate string, object any) Triple {
		return Triple{
			Subject:    p.ID,
			Predicate:  predicate,
			Object:     object,
			Source:     Source,
			Timestamp:  now,
			Confidence: 1.0,
		}
	}

	triples := []Triple{
		t(PredicateType, TypePattern),
		t(PredicatePatternForm, p.Pattern),
		t(PredicatePatternLanguage, p.Language),
		t(PredicatePatternCategory, p.Category.String()),
		t(PredicatePatternFrequency, p.Frequency),
		t(PredicatePatternFirstSeen, p.FirstSeen.UTC().Format(time.RFC3339)),
		t(PredicatePatternLastSeen, p.LastSeen.UTC().Format(time.RFC3339)),
	}
	if p.Description != "" {
		triples = append(triples, t(PredicatePatternDescription, p.Description))
	}
	return triples
}

// properties is the predicate→object view of one queried entity.
type properties map[string]string

func (p properties) str(predicate string) string { return p[predicate] }

func (p properties) intVal(predicate string) int {
	n, err := strconv.Atoi(p[predicate])
	if err != nil {
		return 0
	}
	return n
}

func (p properties) boolVal(predicate string) bool {
	return p[predicate] == "true"
}

func (p properties) timeVal(predicate string) time.Time {
	ts, err := time.Parse(time.RFC3339, p[predicate])
	if err != nil {
		return time.Time{}
	}
	return ts
}

// decodeStandard reconstructs a standard from a queried entity.
func decodeStandard(id string, props properties) (*standards.Standard, error) {
	if props.str(PredicateType) != TypeStandard {
		return nil, fmt.Errorf("entity %s is not a standard", id)
	}

	std := &standards.Standard{
		ID:          id,
		Name:        props.str(PredicateStandardName),
		Language:    props.str(PredicateStandardLanguage),
		Category:    standards.ParseCategory(props.str(PredicateStandardCategory)),
		Severity:    standards.ParseSeverity(props.str(PredicateStandardSeverity)),
		Description: props.str(PredicateStandardDescription),
		Version:     props.str(PredicateStandardVersion),
		Active:      props.boolVal(PredicateStandardActive),
		FileSource:  props.str(PredicateStandardFileSource),
		CreatedAt:   props.timeVal(PredicateStandardCreatedAt),
		UpdatedAt:   props.timeVal(PredicateStandardUpdatedAt),
	}

	if encoded := props.str(PredicateStandardExamples); encoded != "" {
		var examples []standards.Example
		if err := json.Unmarshal([]byte(encoded), &examples); err == nil {
			std.Examples = examples
		}
	}
	return std, nil
}

func decodeHistory(id string, props properties) (*standards.HistoryEntry, error) {
	if props.str(PredicateType) != TypeHistory {
		return nil, fmt.Errorf("entity %s is not a history entry", id)
	}

	return &standards.HistoryEntry{
		Title:           props.str(PredicateHistoryTitle),
		Version:         props.str(PredicateHistoryVersion),
		PreviousVersion: props.str(PredicateHistoryPreviousVersion),
		Content:         props.str(PredicateHistoryContent),
		Changelog:       props.str(PredicateHistoryChangelog),
		ArchivedAt:      props.timeVal(PredicateHistoryArchivedAt),
	}, nil
}

func decodePattern(id string, props properties) (*standards.CodePattern, error) {
	if props.str(PredicateType) != TypePattern {
		return nil, fmt.Errorf("entity %s is not a code pattern", id)
	}

	return &standards.CodePattern{
		ID:          id,
		Pattern:     props.str(PredicatePatternForm),
		Language:    props.str(PredicatePatternLanguage),
		Description: props.str(PredicatePatternDescription),
		Category:    standards.ParseCategory(props.str(PredicatePatternCategory)),
		Frequency:   props.intVal(PredicatePatternFrequency),
		FirstSeen:   props.timeVal(PredicatePatternFirstSeen),
		LastSeen:    props.timeVal(PredicatePatternLastSeen),
	}, nil
}

func decodeViolation(id string, props properties) (*standards.Violation, error) {
	if props.str(PredicateType) != TypeViolation {
		return nil, fmt.Errorf("entity %s is not a violation", id)
	}

	return &standards.Violation{
		ID:         id,
		StandardID: props.str(PredicateViolationStandard),
		FilePath:   props.str(PredicateViolationFilePath),
		Line:       props.intVal(PredicateViolationLine),
		Column:     props.intVal(PredicateViolationColumn),
		Message:    props.str(PredicateViolationMessage),
		Severity:   standards.ParseSeverity(props.str(PredicateViolationSeverity)),
		Suggestion: props.str(PredicateViolationSuggestion),
		ProjectID:  props.str(PredicateViolationProject),
		Timestamp:  props.timeVal(PredicateViolationTimestamp),
	}, nil
}
