package voyage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRerankerRequiresAPIKey(t *testing.T) {
	_, err := NewReranker(Config{})
	assert.Error(t, err)
}

func TestRerankSendsQueryAndDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		assert.Equal(t, "Bearer vk-test", r.Header.Get("Authorization"))

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "how to sort", req.Query)
		assert.Equal(t, []string{"doc a", "doc b", "doc c"}, req.Documents)
		assert.Equal(t, 2, req.TopK)

		resp := map[string]any{
			"data": []map[string]any{
				{"index": 2, "relevance_score": 0.91},
				{"index": 0, "relevance_score": 0.45},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	r, err := NewReranker(Config{APIKey: "vk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	results, err := r.Rerank(context.Background(), "how to sort", []string{"doc a", "doc b", "doc c"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 2, results[0].Index)
	assert.InDelta(t, 0.91, results[0].RelevanceScore, 1e-9)
	assert.Equal(t, 0, results[1].Index)
}

func TestRerankEmptyDocuments(t *testing.T) {
	r, err := NewReranker(Config{APIKey: "vk-test"})
	require.NoError(t, err)

	results, err := r.Rerank(context.Background(), "query", nil, 3)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestRerankSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"rate limit exceeded"}`))
	}))
	defer srv.Close()

	r, err := NewReranker(Config{APIKey: "vk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = r.Rerank(context.Background(), "query", []string{"doc"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestRerankRejectsOutOfRangeIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":5,"relevance_score":0.9}]}`))
	}))
	defer srv.Close()

	r, err := NewReranker(Config{APIKey: "vk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = r.Rerank(context.Background(), "query", []string{"doc"}, 1)
	assert.Error(t, err)
}
