package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingServer answers /embeddings with one vector per input, where the
// vector for input i is [i, i+0.5].
func embeddingServer(t *testing.T, requests *[]map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*requests = append(*requests, body)

		var inputs []any
		switch in := body["input"].(type) {
		case string:
			inputs = []any{in}
		case []any:
			inputs = in
		}

		data := make([]map[string]any, len(inputs))
		for i := range inputs {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(i), float64(i) + 0.5},
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  body["model"],
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("", "")
	require.Error(t, err)
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New("sk-test", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.ModelID())
	assert.Equal(t, 1536, p.Dimensions())
}

func TestModelDimensions(t *testing.T) {
	assert.Equal(t, 3072, modelDimensions("text-embedding-3-large"))
	assert.Equal(t, 1536, modelDimensions("text-embedding-3-small"))
	assert.Equal(t, 1536, modelDimensions("text-embedding-ada-002"))
	assert.Equal(t, 1536, modelDimensions("some-future-model"))
}

func TestEmbed(t *testing.T) {
	var requests []map[string]any
	srv := embeddingServer(t, &requests)

	p, err := New("sk-test", "text-embedding-3-small", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	require.NoError(t, err)

	vec, err := p.Embed(context.Background(), "search files")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5}, vec)

	require.Len(t, requests, 1)
	assert.Equal(t, "text-embedding-3-small", requests[0]["model"])
	assert.Equal(t, "search files", requests[0]["input"])
}

func TestEmbedBatch(t *testing.T) {
	var requests []map[string]any
	srv := embeddingServer(t, &requests)

	p, err := New("sk-test", "", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	require.NoError(t, err)

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, []float32{float32(i), float32(i) + 0.5}, v, fmt.Sprintf("vector %d", i))
	}
	require.Len(t, requests, 1)
}

func TestEmbedBatch_Empty(t *testing.T) {
	p, err := New("sk-test", "")
	require.NoError(t, err)

	vecs, err := p.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	p, err := New("sk-bad", "", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai embeddings")
}
