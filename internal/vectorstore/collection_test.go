package vectorstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/tooldb/internal/embeddings/mock"
)

// backendFactories returns a constructor per backend available in this
// environment. pgvector runs only when TOOLDB_TEST_POSTGRES_DSN is set.
func backendFactories(t *testing.T) map[string]func(t *testing.T) Collection {
	t.Helper()
	factories := map[string]func(t *testing.T) Collection{
		BackendBleve: func(t *testing.T) Collection {
			c, err := NewBleveCollection("test")
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close() })
			return c
		},
		BackendMemory: func(t *testing.T) Collection {
			c := NewMemoryCollection("test", &mock.Provider{Dims: 4096})
			t.Cleanup(func() { _ = c.Close() })
			return c
		},
	}

	if dsn := os.Getenv("TOOLDB_TEST_POSTGRES_DSN"); dsn != "" {
		factories[BackendPgvector] = func(t *testing.T) Collection {
			c, err := NewPgvectorCollection(context.Background(), "test-"+t.Name(), dsn, &mock.Provider{Dims: 64})
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close() })
			return c
		}
	}
	return factories
}

func seedSentinel(t *testing.T, c Collection) {
	t.Helper()
	err := c.Add(context.Background(), []string{""}, []Metadata{{"name": "none"}}, []string{"none"})
	require.NoError(t, err)
}

func addGrep(t *testing.T, c Collection) {
	t.Helper()
	docs := []string{"grep -r pattern dir", "search files", "find text"}
	metas := []Metadata{{"name": "grep"}, {"name": "grep"}, {"name": "grep"}}
	ids := []string{"g1", "g2", "g3"}
	require.NoError(t, c.Add(context.Background(), docs, metas, ids))
}

func TestCollections(t *testing.T) {
	for backend, newCollection := range backendFactories(t) {
		t.Run(backend, func(t *testing.T) {
			t.Run("only sentinel matches anything", func(t *testing.T) {
				c := newCollection(t)
				seedSentinel(t, c)

				res, err := c.Query(context.Background(), "anything", 1)
				require.NoError(t, err)
				require.Len(t, res, 1)
				assert.Equal(t, "none", res[0].ID)
				assert.Equal(t, "none", res[0].Metadata["name"])
			})

			t.Run("nearest fragment wins", func(t *testing.T) {
				c := newCollection(t)
				seedSentinel(t, c)
				addGrep(t, c)

				res, err := c.Query(context.Background(), "search files for pattern", 1)
				require.NoError(t, err)
				require.Len(t, res, 1)
				assert.Equal(t, "g2", res[0].ID)
				assert.Equal(t, "search files", res[0].Document)
				assert.Equal(t, "grep", res[0].Metadata["name"])
			})

			t.Run("unrelated query resolves to sentinel", func(t *testing.T) {
				c := newCollection(t)
				seedSentinel(t, c)
				addGrep(t, c)

				res, err := c.Query(context.Background(), "weather tomorrow", 1)
				require.NoError(t, err)
				require.Len(t, res, 1)
				assert.Equal(t, "none", res[0].ID)
			})

			t.Run("empty query resolves to sentinel", func(t *testing.T) {
				c := newCollection(t)
				seedSentinel(t, c)
				addGrep(t, c)

				res, err := c.Query(context.Background(), "", 1)
				require.NoError(t, err)
				require.Len(t, res, 1)
				assert.Equal(t, "none", res[0].ID)
			})

			t.Run("topK returns closest first", func(t *testing.T) {
				c := newCollection(t)
				seedSentinel(t, c)
				addGrep(t, c)

				res, err := c.Query(context.Background(), "search files", 3)
				require.NoError(t, err)
				require.Len(t, res, 3)
				assert.Equal(t, "g2", res[0].ID)
				assert.GreaterOrEqual(t, res[0].Score, res[1].Score)
				assert.GreaterOrEqual(t, res[1].Score, res[2].Score)
			})

			t.Run("count grows monotonically", func(t *testing.T) {
				c := newCollection(t)
				ctx := context.Background()

				n, err := c.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 0, n)

				seedSentinel(t, c)
				n, err = c.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 1, n)

				addGrep(t, c)
				n, err = c.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 4, n)
			})

			t.Run("mismatched batch is rejected", func(t *testing.T) {
				c := newCollection(t)
				err := c.Add(context.Background(), []string{"a", "b"}, []Metadata{{}}, []string{"1", "2"})
				assert.True(t, errors.Is(err, ErrBatchShape))
			})

			t.Run("duplicate id rejects the whole batch", func(t *testing.T) {
				c := newCollection(t)
				ctx := context.Background()
				seedSentinel(t, c)

				err := c.Add(ctx, []string{"x", "y"}, []Metadata{{}, {}}, []string{"fresh", "none"})
				assert.True(t, errors.Is(err, ErrDuplicateID))

				n, err := c.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 1, n)
			})

			t.Run("duplicate id within a batch", func(t *testing.T) {
				c := newCollection(t)
				err := c.Add(context.Background(), []string{"x", "y"}, []Metadata{{}, {}}, []string{"same", "same"})
				assert.True(t, errors.Is(err, ErrDuplicateID))
			})
		})
	}
}

func TestMemoryCollection_EmbedsNonEmptyTextInOneBatch(t *testing.T) {
	provider := &mock.Provider{Dims: 64}
	c := NewMemoryCollection("test", provider)

	err := c.Add(context.Background(),
		[]string{"ls -la", "", "list files"},
		[]Metadata{{"name": "ls"}, {"name": "ls"}, {"name": "ls"}},
		[]string{"a", "b", "c"},
	)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.BatchCalls())
	assert.Equal(t, []string{"ls -la", "list files"}, provider.Embedded())
}

func TestMemoryCollection_ProviderFailureStoresNothing(t *testing.T) {
	provider := &mock.Provider{Err: errors.New("rate limited")}
	c := NewMemoryCollection("test", provider)
	ctx := context.Background()

	err := c.Add(ctx, []string{"ls"}, []Metadata{{}}, []string{"a"})
	require.Error(t, err)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryCollection_QueryFailure(t *testing.T) {
	provider := &mock.Provider{Dims: 8}
	c := NewMemoryCollection("test", provider)
	seedSentinel(t, c)

	provider.Err = errors.New("offline")
	_, err := c.Query(context.Background(), "anything", 1)
	require.Error(t, err)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity(nil, nil))
	assert.Equal(t, 0.0, similarity(nil, []float32{1, 0}))
	assert.Equal(t, 0.0, similarity([]float32{1, 0}, nil))
	assert.InDelta(t, 1.0, similarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, similarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	c, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultCollectionName, c.Name())
	assert.IsType(t, &BleveCollection{}, c)
	require.NoError(t, c.Close())

	c, err = Open(ctx, Options{Backend: BackendMemory, Name: "x", Provider: &mock.Provider{}})
	require.NoError(t, err)
	assert.Equal(t, "x", c.Name())
	assert.IsType(t, &MemoryCollection{}, c)

	_, err = Open(ctx, Options{Backend: BackendMemory})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Backend: BackendPgvector, Provider: &mock.Provider{}})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Backend: "chroma"})
	assert.Error(t, err)
}

func TestNeedsEmbeddings(t *testing.T) {
	assert.False(t, NeedsEmbeddings(BackendBleve))
	assert.True(t, NeedsEmbeddings(BackendMemory))
	assert.True(t, NeedsEmbeddings(BackendPgvector))
}
