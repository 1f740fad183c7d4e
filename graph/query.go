package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxQueryResponseSize caps gateway response bodies.
const maxQueryResponseSize = 10 * 1024 * 1024

// entityQuery fetches entities matching a predicate filter. The gateway
// applies equality per filter entry and returns each entity's full
// triple set.
const entityQuery = `query($filter: EntityFilter) {
  entities(filter: $filter) {
    id
    triples {
      predicate
      object
    }
  }
}`

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlTriple struct {
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

type gqlEntity struct {
	ID      string      `json:"id"`
	Triples []gqlTriple `json:"triples"`
}

type gqlResponse struct {
	Data struct {
		Entities []gqlEntity `json:"entities"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// entity is a queried entity with its predicate→object view.
type entity struct {
	id    string
	props properties
}

// queryEntities runs the entity query against the gateway with the given
// predicate equality filter.
func (c *Client) queryEntities(ctx context.Context, filter map[string]any) ([]entity, error) {
	if c.cfg.GatewayURL == "" {
		return nil, fmt.Errorf("graph gateway URL is not configured")
	}

	body, err := json.Marshal(&gqlRequest{
		Query:     entityQuery,
		Variables: map[string]any{"filter": filter},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	url := strings.TrimSuffix(c.cfg.GatewayURL, "/") + "/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying graph gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxQueryResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph gateway returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed gqlResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding gateway response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("graph query failed: %s", parsed.Errors[0].Message)
	}

	entities := make([]entity, 0, len(parsed.Data.Entities))
	for _, e := range parsed.Data.Entities {
		props := make(properties, len(e.Triples))
		for _, t := range e.Triples {
			props[t.Predicate] = t.Object
		}
		entities = append(entities, entity{id: e.ID, props: props})
	}
	return entities, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
