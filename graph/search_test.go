package graph

import (
	"context"
	"testing"

	"github.com/c360studio/standards/standards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSearchCorpus(t *testing.T, c *Client) {
	t.Helper()
	ctx := context.Background()

	for _, d := range []*standards.Draft{
		{
			Name:        "SQL injection prevention",
			Language:    "go",
			Category:    standards.CategorySecurity,
			Severity:    standards.SeverityCritical,
			Description: "Always use parameterized queries",
		},
		{
			Name:        "Connection pooling",
			Language:    "go",
			Category:    standards.CategoryPerformance,
			Severity:    standards.SeverityMedium,
			Description: "Reuse database connections; never build SQL injection prone strings",
		},
		{
			Name:        "Input validation",
			Language:    "go",
			Category:    standards.CategorySecurity,
			Severity:    standards.SeverityHigh,
			Description: "Validate at trust boundaries",
		},
		{
			Name:        "Table-driven tests",
			Language:    "go",
			Category:    standards.CategoryTesting,
			Severity:    standards.SeverityLow,
			Description: "Prefer table-driven test structure",
		},
	} {
		_, err := c.UpsertStandard(ctx, d)
		require.NoError(t, err)
	}
}

func TestSemanticSearch_ScoreTiers(t *testing.T) {
	c, _ := newTestClient(t)
	seedSearchCorpus(t, c)
	ctx := context.Background()

	results := c.SemanticSearch(ctx, "sql injection", SearchOptions{})
	require.Len(t, results, 2)

	// Name hit outranks description hit.
	assert.Equal(t, "SQL injection prevention", results[0].Standard.Name)
	assert.Equal(t, scoreName, results[0].Score)
	assert.Equal(t, "Connection pooling", results[1].Standard.Name)
	assert.Equal(t, scoreDesc, results[1].Score)
}

func TestSemanticSearch_CategoryFallback(t *testing.T) {
	c, _ := newTestClient(t)
	seedSearchCorpus(t, c)

	results := c.SemanticSearch(context.Background(), "security hardening checklist", SearchOptions{})
	require.NotEmpty(t, results)
	for _, r := range results {
		if r.Standard.Category == standards.CategorySecurity && r.Score == scoreCategory {
			return
		}
	}
	t.Fatalf("expected a category-scored security result, got %+v", results)
}

func TestSemanticSearch_Threshold(t *testing.T) {
	c, _ := newTestClient(t)
	seedSearchCorpus(t, c)

	all := c.SemanticSearch(context.Background(), "sql injection", SearchOptions{Threshold: 0})
	strict := c.SemanticSearch(context.Background(), "sql injection", SearchOptions{Threshold: 0.9})

	assert.Greater(t, len(all), len(strict))
	require.Len(t, strict, 1)
	assert.Equal(t, scoreName, strict[0].Score)
}

func TestSemanticSearch_Limit(t *testing.T) {
	c, _ := newTestClient(t)
	seedSearchCorpus(t, c)

	results := c.SemanticSearch(context.Background(), "sql injection", SearchOptions{Limit: 1})
	require.Len(t, results, 1)
	assert.Equal(t, "SQL injection prevention", results[0].Standard.Name)
}

func TestSemanticSearch_ExcludesInactive(t *testing.T) {
	c, _ := newTestClient(t)
	seedSearchCorpus(t, c)
	ctx := context.Background()

	std, err := c.FindByNaturalKey(ctx, standards.NaturalKey{
		Language: "go", Category: standards.CategorySecurity, Name: "SQL injection prevention",
	})
	require.NoError(t, err)
	require.NotNil(t, std)
	require.NoError(t, c.DeactivateStandard(ctx, std.ID))

	results := c.SemanticSearch(ctx, "sql injection", SearchOptions{})
	for _, r := range results {
		assert.NotEqual(t, std.ID, r.Standard.ID)
	}
}

func TestSemanticSearch_EmptyQuery(t *testing.T) {
	c, _ := newTestClient(t)
	seedSearchCorpus(t, c)

	assert.Nil(t, c.SemanticSearch(context.Background(), "   ", SearchOptions{}))
}

func TestScoreStandard_NoMatch(t *testing.T) {
	std := &standards.Standard{
		Name:        "Table-driven tests",
		Description: "Prefer table-driven test structure",
		Category:    standards.CategoryTesting,
	}
	assert.Zero(t, scoreStandard(std, "kubernetes"))
}
