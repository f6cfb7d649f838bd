package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
)

// Cache persists vectors by text hash and model.
type Cache interface {
	GetEmbedding(textHash, model string) ([]float32, error)
	SaveEmbedding(textHash, model string, vector []float32) error
}

// Cached wraps a Provider so that text already embedded with the same model
// is served from the cache. Cache failures are logged and fall through to
// the wrapped provider.
type Cached struct {
	next   Provider
	cache  Cache
	logger *zap.Logger
}

var _ Provider = (*Cached)(nil)

// NewCached returns a caching decorator around next.
func NewCached(next Provider, cache Cache, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: cache, logger: logger}
}

// HashText returns the cache key for a text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector for text or embeds and caches it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec := c.lookup(text); vec != nil {
		return vec, nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(text, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missing []string
	var positions []int
	for i, t := range texts {
		if vec := c.lookup(t); vec != nil {
			out[i] = vec
			continue
		}
		missing = append(missing, t)
		positions = append(positions, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embeddings: expected %d vectors, got %d", len(missing), len(vectors))
	}

	for j, pos := range positions {
		out[pos] = vectors[j]
		c.store(missing[j], vectors[j])
	}
	return out, nil
}

// Dimensions returns the wrapped provider's dimensionality.
func (c *Cached) Dimensions() int {
	return c.next.Dimensions()
}

// ModelID returns the wrapped provider's model.
func (c *Cached) ModelID() string {
	return c.next.ModelID()
}

func (c *Cached) lookup(text string) []float32 {
	vec, err := c.cache.GetEmbedding(HashText(text), c.next.ModelID())
	if err != nil {
		c.logger.Warn("embedding cache lookup failed", zap.Error(err))
		return nil
	}
	if len(vec) == 0 {
		return nil
	}
	return vec
}

func (c *Cached) store(text string, vec []float32) {
	if err := c.cache.SaveEmbedding(HashText(text), c.next.ModelID(), vec); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
}
