package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMaxSize bounds the memory backend when no size is configured.
const DefaultMaxSize = 1000

// Memory is an in-process cache with LRU eviction and per-entry expiry.
// Expiry is checked at read time; eviction happens on insert when full.
type Memory struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	stats   counters

	// now is swappable for expiry tests.
	now func() time.Time
}

// memoryEntry is the value stored in the LRU list.
type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemory creates a memory cache bounded at maxSize entries.
// A non-positive maxSize uses DefaultMaxSize.
func NewMemory(maxSize int) *Memory {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Memory{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns the cached value, removing it when expired.
func (m *Memory) Get(_ context.Context, ns Namespace, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[m.fullKey(ns, key)]
	if !ok {
		m.stats.misses.Add(1)
		return nil, false
	}

	entry := elem.Value.(*memoryEntry)
	if m.now().After(entry.expiresAt) {
		m.removeLocked(elem)
		m.stats.misses.Add(1)
		return nil, false
	}

	m.order.MoveToFront(elem)
	m.stats.hits.Add(1)
	return entry.value, true
}

// Set stores a value, evicting the least-recently-used entry when full.
func (m *Memory) Set(_ context.Context, ns Namespace, key string, value []byte, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL(ns)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	full := m.fullKey(ns, key)
	if elem, ok := m.entries[full]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = m.now().Add(ttl)
		m.order.MoveToFront(elem)
		return true
	}

	if m.order.Len() >= m.maxSize {
		if oldest := m.order.Back(); oldest != nil {
			m.removeLocked(oldest)
		}
	}

	elem := m.order.PushFront(&memoryEntry{
		key:       full,
		value:     value,
		expiresAt: m.now().Add(ttl),
	})
	m.entries[full] = elem
	return true
}

// Delete removes a key, reporting whether it was present.
func (m *Memory) Delete(_ context.Context, ns Namespace, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[m.fullKey(ns, key)]
	if !ok {
		return false
	}
	m.removeLocked(elem)
	return true
}

// ClearNamespace drops every entry in the namespace and returns the count.
func (m *Memory) ClearNamespace(_ context.Context, ns Namespace) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := string(ns) + "/"
	removed := 0
	for key, elem := range m.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			m.removeLocked(elem)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the hit/miss/error counters.
func (m *Memory) Stats() Stats {
	return m.stats.snapshot()
}

// Size returns the current entry count.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *Memory) fullKey(ns Namespace, key string) string {
	return string(ns) + "/" + key
}

func (m *Memory) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(m.entries, entry.key)
	m.order.Remove(elem)
}
