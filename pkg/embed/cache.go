package embed

import (
	"container/list"
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// CachedEmbedder wraps an Embedder with an in-memory LRU cache.
//
// Label matching hits the same texts over and over (every AddEdge resolves
// both endpoints), so caching cuts provider round-trips dramatically.
//
// Thread-safe: all operations use a mutex around the LRU structures and
// atomics for the hit/miss counters.
type CachedEmbedder struct {
	embedder Embedder
	maxSize  int

	mu      sync.Mutex
	cache   map[uint64]*list.Element
	lruList *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

// cacheEntry is a single cached embedding keyed by the FNV-1a hash of its text.
type cacheEntry struct {
	key       uint64
	embedding []float32
}

// NewCached wraps embedder with an LRU cache of at most maxSize entries.
// If maxSize <= 0 it defaults to 10000.
func NewCached(embedder Embedder, maxSize int) *CachedEmbedder {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &CachedEmbedder{
		embedder: embedder,
		maxSize:  maxSize,
		cache:    make(map[uint64]*list.Element),
		lruList:  list.New(),
	}
}

// hashText returns the FNV-1a hash used as the cache key.
func hashText(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return h.Sum64()
}

// Embed returns the cached embedding for text, or delegates to the underlying
// embedder and caches the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := hashText(text)

	c.mu.Lock()
	if elem, ok := c.cache[key]; ok {
		c.lruList.MoveToFront(elem)
		embedding := elem.Value.(*cacheEntry).embedding
		c.mu.Unlock()
		c.hits.Add(1)
		return embedding, nil
	}
	c.mu.Unlock()

	c.misses.Add(1)

	embedding, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have filled this key while we were waiting on
	// the provider. Keep whichever landed first.
	if elem, ok := c.cache[key]; ok {
		c.lruList.MoveToFront(elem)
		return elem.Value.(*cacheEntry).embedding, nil
	}

	elem := c.lruList.PushFront(&cacheEntry{key: key, embedding: embedding})
	c.cache[key] = elem

	if c.lruList.Len() > c.maxSize {
		c.evictOldest()
	}

	return embedding, nil
}

// EmbedBatch embeds texts, serving cached entries and batching only the
// misses through the underlying embedder.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	c.mu.Lock()
	for i, text := range texts {
		key := hashText(text)
		if elem, ok := c.cache[key]; ok {
			c.lruList.MoveToFront(elem)
			results[i] = elem.Value.(*cacheEntry).embedding
			c.hits.Add(1)
		} else {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
			c.misses.Add(1)
		}
	}
	c.mu.Unlock()

	if len(missTexts) == 0 {
		return results, nil
	}

	embeddings, err := c.embedder.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d texts", len(embeddings), len(missTexts))
	}

	c.mu.Lock()
	for j, i := range missIdx {
		results[i] = embeddings[j]

		key := hashText(missTexts[j])
		if _, ok := c.cache[key]; ok {
			continue
		}
		elem := c.lruList.PushFront(&cacheEntry{key: key, embedding: embeddings[j]})
		c.cache[key] = elem
		if c.lruList.Len() > c.maxSize {
			c.evictOldest()
		}
	}
	c.mu.Unlock()

	return results, nil
}

// evictOldest removes the least recently used entry. Caller must hold mu.
func (c *CachedEmbedder) evictOldest() {
	elem := c.lruList.Back()
	if elem == nil {
		return
	}
	c.lruList.Remove(elem)
	delete(c.cache, elem.Value.(*cacheEntry).key)
}

// Clear drops all cached embeddings and resets the counters.
func (c *CachedEmbedder) Clear() {
	c.mu.Lock()
	c.cache = make(map[uint64]*list.Element)
	c.lruList = list.New()
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
}

// CacheStats holds hit/miss counters for the embedding cache.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns a snapshot of the cache counters.
func (c *CachedEmbedder) Stats() CacheStats {
	c.mu.Lock()
	size := c.lruList.Len()
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Hits:    hits,
		Misses:  misses,
		Size:    size,
		MaxSize: c.maxSize,
		HitRate: hitRate,
	}
}

// Dimensions returns the underlying embedder's dimensions.
func (c *CachedEmbedder) Dimensions() int {
	return c.embedder.Dimensions()
}

// Model returns the underlying embedder's model name.
func (c *CachedEmbedder) Model() string {
	return c.embedder.Model()
}
