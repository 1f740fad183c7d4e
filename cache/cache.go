// Package cache provides a namespaced response cache with TTL support.
// Two backends implement the same contract: a bounded in-memory LRU and a
// NATS JetStream key-value store for cross-process sharing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"
)

// Namespace partitions cached values by purpose. Each namespace carries its
// own default TTL.
type Namespace string

const (
	NamespaceAudit     Namespace = "audit"
	NamespaceStandards Namespace = "standards"
	NamespaceLLM       Namespace = "llm"
	NamespaceProject   Namespace = "project"
	NamespaceStats     Namespace = "stats"
	NamespaceHealth    Namespace = "health"
)

// defaultTTLs are the per-namespace expiry defaults.
var defaultTTLs = map[Namespace]time.Duration{
	NamespaceAudit:     time.Hour,
	NamespaceStandards: 24 * time.Hour,
	NamespaceLLM:       2 * time.Hour,
	NamespaceProject:   30 * time.Minute,
	NamespaceStats:     5 * time.Minute,
	NamespaceHealth:    30 * time.Second,
}

// DefaultTTL returns the default expiry for a namespace.
// Unknown namespaces fall back to one hour.
func DefaultTTL(ns Namespace) time.Duration {
	if ttl, ok := defaultTTLs[ns]; ok {
		return ttl
	}
	return time.Hour
}

// Cache is the backend-agnostic cache contract.
// A zero ttl on Set applies the namespace default.
type Cache interface {
	Get(ctx context.Context, ns Namespace, key string) ([]byte, bool)
	Set(ctx context.Context, ns Namespace, key string, value []byte, ttl time.Duration) bool
	Delete(ctx context.Context, ns Namespace, key string) bool
	ClearNamespace(ctx context.Context, ns Namespace) int
	Stats() Stats
}

// Stats exposes hit/miss/error counters for observability.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// HitRate derives the fraction of reads served from cache.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// counters is the shared atomic implementation behind Stats.
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}
}

// Key derives a content-addressed cache key from the request parameters.
// The canonical form is JSON with sorted keys, so logically equal requests
// always map to the same key.
func Key(prompt, model string, temperature float64, extras map[string]any) string {
	canonical := map[string]any{
		"prompt":      prompt,
		"model":       model,
		"temperature": temperature,
	}
	for k, v := range extras {
		canonical[k] = v
	}

	// encoding/json marshals map keys in sorted order.
	data, err := json.Marshal(canonical)
	if err != nil {
		// Fall back to hashing the raw prompt; collisions here only cost a
		// cache miss.
		data = []byte(prompt + model)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
