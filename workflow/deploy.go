package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/c360studio/standards/cache"
	"github.com/c360studio/standards/parser"
	"github.com/c360studio/standards/standards"
)

// phaseDeployment writes the validated standard to every configured
// sink in parallel. Individual sink failures are recorded; the phase
// fails only when every sink fails.
func (o *Orchestrator) phaseDeployment(ctx context.Context, _ *active, results map[Phase]any) (any, error) {
	rr, err := researchFrom(results)
	if err != nil {
		return nil, err
	}
	draft := rr.Draft

	type sinkFunc func(context.Context, *standards.Draft) SinkResult
	var sinks []sinkFunc
	if o.outputDir != "" {
		sinks = append(sinks, o.deployFilesystem)
	}
	if o.graph != nil {
		sinks = append(sinks, o.deployGraph)
	}
	if o.cache != nil {
		sinks = append(sinks, o.deployCache)
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("no deployment sinks configured")
	}

	outcomes := make([]SinkResult, len(sinks))
	var wg sync.WaitGroup
	for i, sink := range sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = sink(ctx, draft)
		}()
	}
	wg.Wait()

	result := &DeploymentResult{Sinks: outcomes}
	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.OK {
			succeeded++
		}
		if outcome.Sink == "graph" && outcome.OK {
			result.StandardID = outcome.Identifier
		}
	}
	if succeeded == 0 {
		return nil, fmt.Errorf("all %d deployment sinks failed", len(outcomes))
	}

	o.logger.Info("standard deployed",
		"key", draft.Key().String(), "sinks", len(outcomes), "succeeded", succeeded)
	return result, nil
}

// deployFilesystem renders the standard as markdown under
// outputDir/<language>/<category>/<slug>_v<version>.md.
func (o *Orchestrator) deployFilesystem(_ context.Context, draft *standards.Draft) SinkResult {
	result := SinkResult{Sink: "filesystem"}

	std := &standards.Standard{
		Name:        draft.Name,
		Language:    draft.Language,
		Category:    draft.Category,
		Severity:    draft.Severity,
		Description: draft.Description,
		Examples:    draft.Examples,
		Version:     draft.Version,
	}

	dir := filepath.Join(o.outputDir, draft.Language, draft.Category.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Error = err.Error()
		return result
	}
	version := draft.Version
	if version == "" {
		version = standards.DefaultVersion
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_v%s.md", slugify(draft.Name), version))
	if err := os.WriteFile(path, []byte(parser.Render(std)), 0o644); err != nil {
		result.Error = err.Error()
		return result
	}

	result.OK = true
	result.Identifier = path
	return result
}

// deployGraph upserts the standard into the knowledge graph.
func (o *Orchestrator) deployGraph(ctx context.Context, draft *standards.Draft) SinkResult {
	result := SinkResult{Sink: "graph"}

	std, err := o.graph.UpsertStandard(ctx, draft)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.OK = true
	result.Identifier = std.ID
	return result
}

// deployCache stores the serialized draft under its natural key.
func (o *Orchestrator) deployCache(ctx context.Context, draft *standards.Draft) SinkResult {
	result := SinkResult{Sink: "cache"}

	encoded, err := marshalDraft(draft)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	key := draft.Key().String()
	if !o.cache.Set(ctx, cache.NamespaceStandards, key, encoded, 0) {
		result.Error = "cache rejected the entry"
		return result
	}
	result.OK = true
	result.Identifier = key
	return result
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify produces a filesystem-safe name segment.
func slugify(name string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "standard"
	}
	return slug
}
