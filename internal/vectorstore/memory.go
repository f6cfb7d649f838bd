package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/khanglvm/tooldb/internal/embeddings"
)

// BackendMemory is the name of the in-memory embedding backend.
const BackendMemory = "memory"

// entry is one stored document with its embedding. A nil vector marks empty text.
type entry struct {
	id     string
	doc    string
	meta   Metadata
	vector []float32
}

// MemoryCollection keeps embedded documents in memory and ranks them by
// cosine similarity with a brute-force scan.
type MemoryCollection struct {
	name     string
	provider embeddings.Provider
	mu       sync.RWMutex
	entries  []entry
	ids      map[string]struct{}
}

// NewMemoryCollection creates an empty collection that embeds text with provider.
func NewMemoryCollection(name string, provider embeddings.Provider) *MemoryCollection {
	return &MemoryCollection{
		name:     name,
		provider: provider,
		ids:      make(map[string]struct{}),
	}
}

// Name returns the collection name.
func (c *MemoryCollection) Name() string {
	return c.name
}

// Add embeds every non-empty document in one provider call and appends them.
func (c *MemoryCollection) Add(ctx context.Context, docs []string, metas []Metadata, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkBatch(docs, metas, ids, c.has); err != nil {
		return err
	}

	vectors, err := embedAll(ctx, c.provider, docs)
	if err != nil {
		return err
	}

	for i, doc := range docs {
		c.entries = append(c.entries, entry{
			id:     ids[i],
			doc:    doc,
			meta:   cloneMetadata(metas[i]),
			vector: vectors[i],
		})
		c.ids[ids[i]] = struct{}{}
	}
	return nil
}

func (c *MemoryCollection) has(id string) bool {
	_, ok := c.ids[id]
	return ok
}

// Query embeds text and returns the topK most similar documents.
func (c *MemoryCollection) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	query, err := embedOne(ctx, c.provider, text)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(c.entries))
	for i, e := range c.entries {
		ranked[i] = scored{idx: i, score: similarity(query, e.vector)}
	}

	// Stable sort keeps insertion order among equal scores
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	results := make([]Result, len(ranked))
	for i, r := range ranked {
		e := c.entries[r.idx]
		results[i] = Result{
			ID:       e.id,
			Document: e.doc,
			Metadata: cloneMetadata(e.meta),
			Score:    r.score,
		}
	}
	return results, nil
}

// Count returns the number of stored documents.
func (c *MemoryCollection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// Close drops all stored documents.
func (c *MemoryCollection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil
	return nil
}

// embedAll embeds the non-empty texts in a single batch. Empty texts get a
// nil vector without reaching the provider.
func embedAll(ctx context.Context, provider embeddings.Provider, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var batch []string
	var positions []int
	for i, t := range texts {
		if t == "" {
			continue
		}
		batch = append(batch, t)
		positions = append(positions, i)
	}
	if len(batch) == 0 {
		return vectors, nil
	}

	embedded, err := provider.EmbedBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(embedded) != len(batch) {
		return nil, fmt.Errorf("failed to embed documents: expected %d vectors, got %d", len(batch), len(embedded))
	}
	for j, pos := range positions {
		vectors[pos] = embedded[j]
	}
	return vectors, nil
}

// embedOne embeds a single query text; empty text yields a nil vector.
func embedOne(ctx context.Context, provider embeddings.Provider, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}
	vec, err := provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return vec, nil
}

// similarity compares two vectors where nil stands for empty text: two empty
// texts are identical, empty against non-empty is unrelated.
func similarity(a, b []float32) float64 {
	switch {
	case a == nil && b == nil:
		return 1.0
	case a == nil || b == nil:
		return 0.0
	}
	return cosineSimilarity(a, b)
}

// cosineSimilarity computes cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
