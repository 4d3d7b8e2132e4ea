package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

func vector(seed float32) []float32 {
	v := make([]float32, domain.EmbeddingDimension)
	v[0] = seed
	return v
}

// newServer echoes one vector per input; v[0] is the input's index + 1.
func newServer(t *testing.T, dims int, seen *[]embedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
			return
		case "/api/embed":
		default:
			http.NotFound(w, r)
			return
		}

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if seen != nil {
			*seen = append(*seen, req)
		}
		resp := embedResponse{}
		for i := range req.Input {
			v := make([]float32, dims)
			v[0] = float32(i + 1)
			resp.Embeddings = append(resp.Embeddings, v)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbeddingService_Defaults(t *testing.T) {
	svc := NewEmbeddingService(Config{})

	assert.Equal(t, DefaultBaseURL, svc.baseURL)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, 768, svc.Dimensions())
	assert.NoError(t, svc.Close())
}

func TestEmbeddingService_EmbedBatch_PrefixesDocuments(t *testing.T) {
	var seen []embedRequest
	server := newServer(t, domain.EmbeddingDimension, &seen)
	defer server.Close()
	svc := NewEmbeddingService(Config{BaseURL: server.URL + "/", Model: "nomic-embed-text"})

	vectors, err := svc.EmbedBatch(context.Background(), []string{"alpha", "beta"})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, vector(1), vectors[0])
	assert.Equal(t, vector(2), vectors[1])
	require.Len(t, seen, 1)
	assert.Equal(t, "nomic-embed-text", seen[0].Model)
	assert.Equal(t, []string{"search_document: alpha", "search_document: beta"}, seen[0].Input)
}

func TestEmbeddingService_EmbedQuery_PrefixesQuery(t *testing.T) {
	var seen []embedRequest
	server := newServer(t, domain.EmbeddingDimension, &seen)
	defer server.Close()
	svc := NewEmbeddingService(Config{BaseURL: server.URL})

	v, err := svc.EmbedQuery(context.Background(), "revenue by region")

	require.NoError(t, err)
	assert.Equal(t, vector(1), v)
	assert.Equal(t, []string{"search_query: revenue by region"}, seen[0].Input)
}

func TestEmbeddingService_EmbedBatch_Empty(t *testing.T) {
	svc := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:1"})

	vectors, err := svc.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbeddingService_WrongDimension(t *testing.T) {
	server := newServer(t, 384, nil)
	defer server.Close()
	svc := NewEmbeddingService(Config{BaseURL: server.URL, Model: "all-minilm"})

	_, err := svc.EmbedBatch(context.Background(), []string{"x"})

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "all-minilm")
}

func TestEmbeddingService_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `model "missing" not found`, http.StatusNotFound)
	}))
	defer server.Close()
	svc := NewEmbeddingService(Config{BaseURL: server.URL})

	_, err := svc.EmbedQuery(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "not found")
}

func TestEmbeddingService_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	svc := NewEmbeddingService(Config{BaseURL: url, Timeout: time.Second})

	_, err := svc.EmbedQuery(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	assert.ErrorIs(t, svc.Ping(context.Background()), domain.ErrEmbeddingUnavailable)
}

func TestEmbeddingService_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{vector(1)}})
	}))
	defer server.Close()
	svc := NewEmbeddingService(Config{BaseURL: server.URL})

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})

	assert.ErrorContains(t, err, "got 1 embeddings for 2 inputs")
}

func TestEmbeddingService_Ping(t *testing.T) {
	server := newServer(t, domain.EmbeddingDimension, nil)
	defer server.Close()

	assert.NoError(t, NewEmbeddingService(Config{BaseURL: server.URL}).Ping(context.Background()))
}

func TestEmbeddingService_RateLimitHonoursContext(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{vector(1)}})
	}))
	defer server.Close()
	svc := NewEmbeddingService(Config{BaseURL: server.URL, RequestsPerSecond: 0.001})

	_, err := svc.EmbedQuery(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = svc.EmbedQuery(ctx, "second")

	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
