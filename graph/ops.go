package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/c360studio/standards/standards"
)

// Criteria filters standard lookups. Zero-value fields match everything.
type Criteria struct {
	Language   string
	Category   standards.Category
	ActiveOnly bool
}

// UpsertStandard creates or refreshes a standard by natural key. On a
// match it keeps the stored id and created_at and refreshes description,
// severity, examples, version, and active; on a miss it creates a new
// entity from the draft. When the match changes the description or
// version, the outgoing content is archived as a history entry first.
func (c *Client) UpsertStandard(ctx context.Context, draft *standards.Draft) (*standards.Standard, error) {
	if draft.Name == "" {
		return nil, fmt.Errorf("standard name is required")
	}

	now := c.now().UTC()
	std := &standards.Standard{
		Name:        draft.Name,
		Language:    draft.Language,
		Category:    draft.Category,
		Severity:    draft.Severity,
		Description: draft.Description,
		Examples:    draft.Examples,
		Version:     draft.Version,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if std.Language == "" {
		std.Language = standards.LanguageGeneral
	}
	if std.Version == "" {
		std.Version = standards.DefaultVersion
	}

	existing, err := c.FindByNaturalKey(ctx, std.Key())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		std.ID = existing.ID
		std.CreatedAt = existing.CreatedAt
		std.FileSource = existing.FileSource
		if existing.Description != std.Description || existing.Version != std.Version {
			if err := c.archiveStandard(ctx, existing, std.Version, now); err != nil {
				return nil, err
			}
		}
	} else {
		std.ID = standardIDPrefix + c.newID()
	}

	if err := c.publishEntity(ctx, &EntityMessage{
		ID:        std.ID,
		Triples:   standardTriples(std, now),
		UpdatedAt: now,
	}); err != nil {
		return nil, err
	}

	c.logger.Debug("standard upserted",
		"id", std.ID, "key", std.Key().String(), "created", existing == nil)
	return std, nil
}

// archiveStandard records the outgoing content of a standard as an
// append-only history entry before its replacement is published.
func (c *Client) archiveStandard(ctx context.Context, prev *standards.Standard, nextVersion string, now time.Time) error {
	entry := &standards.HistoryEntry{
		Title:      prev.Name,
		Version:    prev.Version,
		Content:    prev.Description,
		Changelog:  fmt.Sprintf("superseded by version %s", nextVersion),
		ArchivedAt: now,
	}

	id := historyIDPrefix + c.newID()
	if err := c.publishEntity(ctx, &EntityMessage{
		ID:        id,
		Triples:   historyTriples(id, entry, now),
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("archiving standard %s: %w", prev.ID, err)
	}

	c.logger.Debug("standard version archived",
		"id", prev.ID, "version", prev.Version, "next", nextVersion)
	return nil
}

// StandardHistory returns the archived versions of a standard by title,
// oldest first.
func (c *Client) StandardHistory(ctx context.Context, title string) ([]*standards.HistoryEntry, error) {
	entities, err := c.queryEntities(ctx, map[string]any{
		PredicateType:         TypeHistory,
		PredicateHistoryTitle: title,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]*standards.HistoryEntry, 0, len(entities))
	for _, e := range entities {
		entry, err := decodeHistory(e.id, e.props)
		if err != nil {
			c.logger.Warn("skipping undecodable history entry", "id", e.id, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ArchivedAt.Equal(entries[j].ArchivedAt) {
			return entries[i].ArchivedAt.Before(entries[j].ArchivedAt)
		}
		return entries[i].Version < entries[j].Version
	})
	return entries, nil
}

// ImportStandard is UpsertStandard with a file source attached, used by
// the sync engine for file-backed standards.
func (c *Client) ImportStandard(ctx context.Context, draft *standards.Draft, fileSource string) (*standards.Standard, error) {
	std, err := c.UpsertStandard(ctx, draft)
	if err != nil {
		return nil, err
	}
	if std.FileSource == fileSource {
		return std, nil
	}

	std.FileSource = fileSource
	now := c.now().UTC()
	if err := c.publishEntity(ctx, &EntityMessage{
		ID:        std.ID,
		Triples:   standardTriples(std, now),
		UpdatedAt: now,
	}); err != nil {
		return nil, err
	}
	return std, nil
}

// FindByNaturalKey returns the standard matching (language, category,
// name), or nil when none exists.
func (c *Client) FindByNaturalKey(ctx context.Context, key standards.NaturalKey) (*standards.Standard, error) {
	entities, err := c.queryEntities(ctx, map[string]any{
		PredicateType:             TypeStandard,
		PredicateStandardLanguage: key.Language,
		PredicateStandardCategory: key.Category.String(),
		PredicateStandardName:     key.Name,
	})
	if err != nil {
		c.logger.Error("natural key lookup failed", "key", key.String(), "error", err)
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}

	std, err := decodeStandard(entities[0].id, entities[0].props)
	if err != nil {
		return nil, err
	}
	return std, nil
}

// FindByCriteria returns standards matching the filter, sorted by
// language, category, name. Per-operation query failures log and return
// an empty slice so callers keep running.
func (c *Client) FindByCriteria(ctx context.Context, crit Criteria) []*standards.Standard {
	filter := map[string]any{PredicateType: TypeStandard}
	if crit.Language != "" {
		filter[PredicateStandardLanguage] = crit.Language
	}
	if crit.Category != "" {
		filter[PredicateStandardCategory] = crit.Category.String()
	}
	if crit.ActiveOnly {
		filter[PredicateStandardActive] = "true"
	}

	entities, err := c.queryEntities(ctx, filter)
	if err != nil {
		c.logger.Error("criteria lookup failed", "error", err)
		return nil
	}

	results := make([]*standards.Standard, 0, len(entities))
	for _, e := range entities {
		std, err := decodeStandard(e.id, e.props)
		if err != nil {
			c.logger.Warn("skipping undecodable standard", "id", e.id, "error", err)
			continue
		}
		results = append(results, std)
	}
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Language != b.Language {
			return a.Language < b.Language
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Name < b.Name
	})
	return results
}

// GetStandard returns one standard by id, or nil when absent.
func (c *Client) GetStandard(ctx context.Context, id string) (*standards.Standard, error) {
	entities, err := c.queryEntities(ctx, map[string]any{
		PredicateType: TypeStandard,
		"id":          id,
	})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return decodeStandard(entities[0].id, entities[0].props)
}

// DeactivateStandard soft-deletes a standard by clearing its active flag.
func (c *Client) DeactivateStandard(ctx context.Context, id string) error {
	std, err := c.GetStandard(ctx, id)
	if err != nil {
		return err
	}
	if std == nil {
		return fmt.Errorf("standard %s not found", id)
	}

	std.Active = false
	now := c.now().UTC()
	std.UpdatedAt = now
	return c.publishEntity(ctx, &EntityMessage{
		ID:        std.ID,
		Triples:   standardTriples(std, now),
		UpdatedAt: now,
	})
}

// DeleteStandard hard-deletes a standard entity.
func (c *Client) DeleteStandard(ctx context.Context, id string) error {
	return c.publishDelete(ctx, id)
}

// DeleteStandardsWithSource hard-deletes every standard imported from the
// given file path. Used when a source file disappears.
func (c *Client) DeleteStandardsWithSource(ctx context.Context, filePath string) (int, error) {
	entities, err := c.queryEntities(ctx, map[string]any{
		PredicateType:               TypeStandard,
		PredicateStandardFileSource: filePath,
	})
	if err != nil {
		c.logger.Error("source lookup failed", "file", filePath, "error", err)
		return 0, err
	}

	removed := 0
	for _, e := range entities {
		if err := c.publishDelete(ctx, e.id); err != nil {
			c.logger.Error("delete failed", "id", e.id, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// RecordViolation stores a violation after verifying its standard exists.
// Projects are merged: a project entity is created if missing.
func (c *Client) RecordViolation(ctx context.Context, v *standards.Violation) error {
	if v.StandardID == "" {
		return fmt.Errorf("violation standard_id is required")
	}

	std, err := c.GetStandard(ctx, v.StandardID)
	if err != nil {
		return err
	}
	if std == nil {
		return fmt.Errorf("violation references unknown standard %s", v.StandardID)
	}

	now := c.now().UTC()
	if v.ID == "" {
		v.ID = violationIDPrefix + c.newID()
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = now
	}
	if !v.Severity.IsValid() {
		v.Severity = std.Severity
	}

	if v.ProjectID != "" {
		if err := c.mergeProject(ctx, v.ProjectID, now); err != nil {
			return err
		}
	}

	return c.publishEntity(ctx, &EntityMessage{
		ID:        v.ID,
		Triples:   violationTriples(v, now),
		UpdatedAt: now,
	})
}

// mergeProject creates the project entity when it does not exist yet.
func (c *Client) mergeProject(ctx context.Context, projectID string, now time.Time) error {
	entities, err := c.queryEntities(ctx, map[string]any{
		PredicateType: TypeProject,
		"id":          projectIDPrefix + projectID,
	})
	if err != nil {
		return err
	}
	if len(entities) > 0 {
		return nil
	}

	return c.publishEntity(ctx, &EntityMessage{
		ID: projectIDPrefix + projectID,
		Triples: []Triple{
			{Subject: projectIDPrefix + projectID, Predicate: PredicateType, Object: TypeProject, Source: Source, Timestamp: now, Confidence: 1.0},
			{Subject: projectIDPrefix + projectID, Predicate: PredicateProjectName, Object: projectID, Source: Source, Timestamp: now, Confidence: 1.0},
		},
		UpdatedAt: now,
	})
}

// UpsertPattern records an observation of a code pattern. On
// re-observation frequency accumulates and last_seen advances;
// first_seen never changes.
func (c *Client) UpsertPattern(ctx context.Context, pattern string, language string, category standards.Category, description string) (*standards.CodePattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern form is required")
	}

	now := c.now().UTC()
	p := &standards.CodePattern{
		Pattern:     pattern,
		Language:    language,
		Description: description,
		Category:    category,
		Frequency:   1,
		FirstSeen:   now,
		LastSeen:    now,
	}

	entities, err := c.queryEntities(ctx, map[string]any{
		PredicateType:            TypePattern,
		PredicatePatternForm:     pattern,
		PredicatePatternLanguage: language,
	})
	if err != nil {
		return nil, err
	}
	if len(entities) > 0 {
		existing, err := decodePattern(entities[0].id, entities[0].props)
		if err != nil {
			return nil, err
		}
		p.ID = existing.ID
		p.Frequency = existing.Frequency + 1
		p.FirstSeen = existing.FirstSeen
		if p.Description == "" {
			p.Description = existing.Description
		}
	} else {
		p.ID = patternIDPrefix + c.newID()
	}

	if err := c.publishEntity(ctx, &EntityMessage{
		ID:        p.ID,
		Triples:   patternTriples(p, now),
		UpdatedAt: now,
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// EvolvePatternToStandard promotes a recurring pattern into a standard
// and links the pattern to it. A pattern evolves into exactly one
// standard; re-evolving an already evolved pattern is an error.
func (c *Client) EvolvePatternToStandard(ctx context.Context, patternID string, draft *standards.Draft) (*standards.Standard, error) {
	entities, err := c.queryEntities(ctx, map[string]any{
		PredicateType: TypePattern,
		"id":          patternID,
	})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("pattern %s not found", patternID)
	}
	if evolved := entities[0].props.str(PredicatePatternEvolvedInto); evolved != "" {
		return nil, fmt.Errorf("pattern %s already evolved into %s", patternID, evolved)
	}

	std, err := c.UpsertStandard(ctx, draft)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	link := Triple{
		Subject:    patternID,
		Predicate:  PredicatePatternEvolvedInto,
		Object:     std.ID,
		Source:     Source,
		Timestamp:  now,
		Confidence: 1.0,
	}
	if err := c.publishEntity(ctx, &EntityMessage{ID: patternID, Triples: []Triple{link}, UpdatedAt: now}); err != nil {
		return nil, err
	}
	return std, nil
}

// DuplicateGroup is a set of standards sharing one natural key.
type DuplicateGroup struct {
	Key       standards.NaturalKey
	Standards []*standards.Standard
}

// FindDuplicates groups standards by natural key and returns the groups
// holding more than one entity. Language narrows the scan when set.
func (c *Client) FindDuplicates(ctx context.Context, language string) []DuplicateGroup {
	all := c.FindByCriteria(ctx, Criteria{Language: language})

	byKey := make(map[standards.NaturalKey][]*standards.Standard)
	var order []standards.NaturalKey
	for _, std := range all {
		key := std.Key()
		if len(byKey[key]) == 0 {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], std)
	}

	var groups []DuplicateGroup
	for _, key := range order {
		if len(byKey[key]) > 1 {
			groups = append(groups, DuplicateGroup{Key: key, Standards: byKey[key]})
		}
	}
	return groups
}

// Keep policies for CleanupDuplicates.
const (
	KeepFirst  = "first"
	KeepNewest = "newest"
)

// CleanupDuplicates removes redundant standards per natural key, keeping
// the oldest (first) or most recently created (newest) of each group.
func (c *Client) CleanupDuplicates(ctx context.Context, language, keep string) (int, error) {
	if keep != KeepFirst && keep != KeepNewest {
		return 0, fmt.Errorf("invalid keep policy %q: want %q or %q", keep, KeepFirst, KeepNewest)
	}

	removed := 0
	for _, group := range c.FindDuplicates(ctx, language) {
		sorted := append([]*standards.Standard(nil), group.Standards...)
		sort.Slice(sorted, func(i, j int) bool {
			if keep == KeepNewest {
				return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
			}
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		})

		for _, std := range sorted[1:] {
			if err := c.publishDelete(ctx, std.ID); err != nil {
				c.logger.Error("duplicate delete failed", "id", std.ID, "error", err)
				continue
			}
			removed++
		}
		c.logger.Info("duplicates cleaned",
			"key", group.Key.String(), "kept", sorted[0].ID, "removed", len(sorted)-1)
	}
	return removed, nil
}

// ViolationsForStandard lists recorded violations of a standard.
func (c *Client) ViolationsForStandard(ctx context.Context, standardID string) []*standards.Violation {
	entities, err := c.queryEntities(ctx, map[string]any{
		PredicateType:              TypeViolation,
		PredicateViolationStandard: standardID,
	})
	if err != nil {
		c.logger.Error("violation lookup failed", "standard_id", standardID, "error", err)
		return nil
	}

	results := make([]*standards.Violation, 0, len(entities))
	for _, e := range entities {
		v, err := decodeViolation(e.id, e.props)
		if err != nil {
			continue
		}
		results = append(results, v)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})
	return results
}
