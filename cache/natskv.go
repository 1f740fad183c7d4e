package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// opTimeout bounds every KV round-trip.
const opTimeout = 5 * time.Second

// NATSKV is a cache backed by JetStream key-value buckets, one bucket per
// namespace. Values carry an expiry envelope enforced at read; the bucket
// TTL garbage-collects abandoned entries.
type NATSKV struct {
	js           jetstream.JetStream
	bucketPrefix string
	logger       *slog.Logger

	mu      sync.Mutex
	buckets map[Namespace]jetstream.KeyValue
	stats   counters

	now func() time.Time
}

// kvEnvelope wraps a stored value with its expiry.
type kvEnvelope struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewNATSKV creates a KV cache on an established NATS connection.
func NewNATSKV(nc *nats.Conn, bucketPrefix string, logger *slog.Logger) (*NATSKV, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if bucketPrefix == "" {
		bucketPrefix = "standards-cache"
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &NATSKV{
		js:           js,
		bucketPrefix: bucketPrefix,
		logger:       logger,
		buckets:      make(map[Namespace]jetstream.KeyValue),
		now:          time.Now,
	}, nil
}

// Get returns the cached value, treating expired or unreadable entries as
// misses. Backend failures degrade to a miss and count as errors.
func (c *NATSKV) Get(ctx context.Context, ns Namespace, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	bucket, err := c.bucket(ctx, ns)
	if err != nil {
		c.stats.errors.Add(1)
		c.stats.misses.Add(1)
		return nil, false
	}

	entry, err := bucket.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			c.stats.errors.Add(1)
			c.logger.Warn("Cache read failed", "namespace", ns, "error", err)
		}
		c.stats.misses.Add(1)
		return nil, false
	}

	var env kvEnvelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		c.stats.errors.Add(1)
		c.stats.misses.Add(1)
		return nil, false
	}

	if c.now().After(env.ExpiresAt) {
		// Expired entries are removed eagerly so readers converge.
		if err := bucket.Delete(ctx, key); err != nil {
			c.logger.Debug("Failed to delete expired cache entry", "namespace", ns, "error", err)
		}
		c.stats.misses.Add(1)
		return nil, false
	}

	c.stats.hits.Add(1)
	return env.Value, true
}

// Set stores a value with the namespace default TTL unless overridden.
func (c *NATSKV) Set(ctx context.Context, ns Namespace, key string, value []byte, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL(ns)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	bucket, err := c.bucket(ctx, ns)
	if err != nil {
		c.stats.errors.Add(1)
		return false
	}

	data, err := json.Marshal(kvEnvelope{Value: value, ExpiresAt: c.now().Add(ttl)})
	if err != nil {
		c.stats.errors.Add(1)
		return false
	}

	if _, err := bucket.Put(ctx, key, data); err != nil {
		c.stats.errors.Add(1)
		c.logger.Warn("Cache write failed", "namespace", ns, "error", err)
		return false
	}
	return true
}

// Delete removes a key, reporting whether it was present.
func (c *NATSKV) Delete(ctx context.Context, ns Namespace, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	bucket, err := c.bucket(ctx, ns)
	if err != nil {
		c.stats.errors.Add(1)
		return false
	}

	if _, err := bucket.Get(ctx, key); err != nil {
		return false
	}
	if err := bucket.Delete(ctx, key); err != nil {
		c.stats.errors.Add(1)
		return false
	}
	return true
}

// ClearNamespace deletes every key in the namespace's bucket.
func (c *NATSKV) ClearNamespace(ctx context.Context, ns Namespace) int {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	bucket, err := c.bucket(ctx, ns)
	if err != nil {
		c.stats.errors.Add(1)
		return 0
	}

	lister, err := bucket.ListKeys(ctx)
	if err != nil {
		if !errors.Is(err, jetstream.ErrNoKeysFound) {
			c.stats.errors.Add(1)
		}
		return 0
	}

	removed := 0
	for key := range lister.Keys() {
		if err := bucket.Delete(ctx, key); err == nil {
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the hit/miss/error counters.
func (c *NATSKV) Stats() Stats {
	return c.stats.snapshot()
}

// bucket returns the namespace's KV bucket, creating it on first use with
// the namespace default TTL.
func (c *NATSKV) bucket(ctx context.Context, ns Namespace) (jetstream.KeyValue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if kv, ok := c.buckets[ns]; ok {
		return kv, nil
	}

	name := fmt.Sprintf("%s-%s", c.bucketPrefix, ns)
	kv, err := c.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Response cache namespace %s", ns),
		TTL:         DefaultTTL(ns),
	})
	if err != nil {
		return nil, fmt.Errorf("create cache bucket %s: %w", name, err)
	}

	c.buckets[ns] = kv
	return kv, nil
}
