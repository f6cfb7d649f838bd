// Package mock provides a deterministic embeddings.Provider for tests.
//
// Provider hashes each lower-cased word of the input into a fixed number of
// buckets, so texts sharing words have positive cosine similarity and texts
// with no words in common are (almost always) orthogonal.
package mock

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/khanglvm/tooldb/internal/embeddings"
)

// DefaultDimensions is used when Provider.Dims is zero.
const DefaultDimensions = 256

var _ embeddings.Provider = (*Provider)(nil)

// Provider is a bag-of-words hashing embedder that records its calls.
type Provider struct {
	// Dims is the vector length.
	Dims int

	// Err, if set, is returned by every call.
	Err error

	mu         sync.Mutex
	embedded   []string
	batchCalls int
}

// Embed hashes text into a vector.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	p.embedded = append(p.embedded, text)
	return p.vector(text), nil
}

// EmbedBatch hashes every text.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	p.batchCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		p.embedded = append(p.embedded, t)
		out[i] = p.vector(t)
	}
	return out, nil
}

// Dimensions returns the vector length.
func (p *Provider) Dimensions() int {
	if p.Dims <= 0 {
		return DefaultDimensions
	}
	return p.Dims
}

// ModelID returns a fixed model name.
func (p *Provider) ModelID() string {
	return "mock-bag-of-words"
}

// Embedded returns every text embedded so far, in call order.
func (p *Provider) Embedded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.embedded...)
}

// BatchCalls returns how many times EmbedBatch was called.
func (p *Provider) BatchCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batchCalls
}

func (p *Provider) vector(text string) []float32 {
	vec := make([]float32, p.Dimensions())
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[int(h.Sum32())%len(vec)]++
	}
	return vec
}
