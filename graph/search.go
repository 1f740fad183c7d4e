package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/c360studio/standards/standards"
)

// Search score weights. Name hits outrank description hits outrank
// category hits; weaker token overlap floors at the partial score.
const (
	scoreName     = 1.0
	scoreDesc     = 0.8
	scoreCategory = 0.6
	scorePartial  = 0.5
)

// SearchOptions narrow and bound a semantic search.
type SearchOptions struct {
	Language  string
	Category  standards.Category
	Limit     int
	Threshold float64
}

// SearchResult pairs a standard with its relevance score.
type SearchResult struct {
	Standard *standards.Standard `json:"standard"`
	Score    float64             `json:"score"`
}

// SemanticSearch scores active standards against a free-text query.
// Substring scoring over name, description, and category; results below
// the threshold are dropped, ordered by score descending. The contract
// admits a vector-embedding backend later without caller changes.
func (c *Client) SemanticSearch(ctx context.Context, query string, opts SearchOptions) []SearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	candidates := c.FindByCriteria(ctx, Criteria{
		Language:   opts.Language,
		Category:   opts.Category,
		ActiveOnly: true,
	})

	var results []SearchResult
	for _, std := range candidates {
		score := scoreStandard(std, query)
		if score < opts.Threshold || score == 0 {
			continue
		}
		results = append(results, SearchResult{Standard: std, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Standard.Name < results[j].Standard.Name
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

// scoreStandard computes the substring relevance of one standard.
func scoreStandard(std *standards.Standard, query string) float64 {
	name := strings.ToLower(std.Name)
	desc := strings.ToLower(std.Description)
	category := std.Category.String()

	switch {
	case strings.Contains(name, query):
		return scoreName
	case strings.Contains(desc, query):
		return scoreDesc
	}

	tokens := strings.Fields(query)
	for _, token := range tokens {
		if strings.Contains(category, token) {
			return scoreCategory
		}
	}
	for _, token := range tokens {
		if strings.Contains(name, token) || strings.Contains(desc, token) {
			return scorePartial
		}
	}
	return 0
}
