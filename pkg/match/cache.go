package match

import (
	"context"
	"sync"

	"github.com/orneryd/munin/pkg/embed"
)

// Cache holds the per-session label index the matcher resolves against:
// every label in the session's graph, its normalized form, and (when an
// embedding provider is available) its embedding vector.
//
// The session store owns one Cache per session and shares it with that
// session's matcher. The graph layer keeps it in sync: Put on node creation,
// Remove on node deletion.
//
// Thread-safe.
type Cache struct {
	mu sync.RWMutex

	// labels in creation order; normalized-tier ties break toward the
	// earliest created label
	order []string

	labels     map[string]int        // label -> index into order
	normalized map[string][]string   // normalized form -> labels, creation order
	embeddings map[string][]float32  // label -> embedding, lazily filled
}

// NewCache creates an empty label cache.
func NewCache() *Cache {
	return &Cache{
		labels:     make(map[string]int),
		normalized: make(map[string][]string),
		embeddings: make(map[string][]float32),
	}
}

// Put registers a label. Embeddings are filled lazily on first fuzzy lookup,
// so Put never blocks on a provider. Re-adding a known label is a no-op.
func (c *Cache) Put(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.labels[label]; ok {
		return
	}

	c.labels[label] = len(c.order)
	c.order = append(c.order, label)

	norm := Normalize(label)
	c.normalized[norm] = append(c.normalized[norm], label)
}

// Remove drops a label and its embedding from the cache.
func (c *Cache) Remove(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.labels[label]
	if !ok {
		return
	}

	delete(c.labels, label)
	delete(c.embeddings, label)

	c.order = append(c.order[:idx], c.order[idx+1:]...)
	for i := idx; i < len(c.order); i++ {
		c.labels[c.order[i]] = i
	}

	norm := Normalize(label)
	bucket := c.normalized[norm]
	for i, l := range bucket {
		if l == label {
			c.normalized[norm] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(c.normalized[norm]) == 0 {
		delete(c.normalized, norm)
	}
}

// Has reports whether label is registered, byte for byte.
func (c *Cache) Has(label string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.labels[label]
	return ok
}

// Len returns the number of registered labels.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Labels returns all registered labels in creation order.
func (c *Cache) Labels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// LookupNormalized returns the labels whose normalized form matches norm, in
// creation order.
func (c *Cache) LookupNormalized(norm string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bucket := c.normalized[norm]
	out := make([]string, len(bucket))
	copy(out, bucket)
	return out
}

// Embedding returns the embedding for label, computing and memoizing it via
// embedder on first request. Returns nil when embedder is nil or the
// provider call fails; the matcher treats nil as "skip this label".
func (c *Cache) Embedding(ctx context.Context, embedder embed.Embedder, label string) []float32 {
	c.mu.RLock()
	vec, ok := c.embeddings[label]
	c.mu.RUnlock()
	if ok {
		return vec
	}

	if embedder == nil {
		return nil
	}

	vec, err := embedder.Embed(ctx, label)
	if err != nil {
		return nil
	}

	c.mu.Lock()
	c.embeddings[label] = vec
	c.mu.Unlock()
	return vec
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.labels = make(map[string]int)
	c.normalized = make(map[string][]string)
	c.embeddings = make(map[string][]float32)
}
