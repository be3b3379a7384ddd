package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, 768, c.Dimension())
}

func TestClient_EmbedSingle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 1)

		resp := map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2, 0.3}, "index": 0},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Dimension: 3})
	require.NoError(t, err)

	vec, err := c.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, c.Dimension())
}

func TestClient_EmbedSingle_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit"},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.EmbedSingle(context.Background(), "hello")
	assert.ErrorContains(t, err, "rate limited")
}

func TestClient_EmbedSingle_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.EmbedSingle(context.Background(), "hello")
	assert.ErrorContains(t, err, "no embedding")
}

func TestMockClient_Deterministic(t *testing.T) {
	mock := NewMockClient(64)

	a1, err := mock.EmbedSingle(context.Background(), "same text")
	require.NoError(t, err)
	a2, err := mock.EmbedSingle(context.Background(), "same text")
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Len(t, a1, 64)
}

func TestMockClient_Normalized(t *testing.T) {
	mock := NewMockClient(32)
	vec, err := mock.EmbedSingle(context.Background(), "normalize me")
	require.NoError(t, err)

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-3)
}

func TestEmbedAll_BatchesAndRecordsFailures(t *testing.T) {
	var calls atomic.Int32
	mock := NewMockClient(16)

	texts := make([]string, 45)
	for i := range texts {
		texts[i] = "text"
	}

	counting := embedFunc(func(ctx context.Context, text string) ([]float32, error) {
		calls.Add(1)
		return mock.EmbedSingle(ctx, text)
	})

	results := EmbedAll(context.Background(), counting, texts, 20)
	require.Len(t, results, 45)
	assert.Equal(t, int32(45), calls.Load())
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.NotNil(t, r.Vector)
	}
}

func TestEmbedAll_PartialFailure(t *testing.T) {
	boom := errors.New("provider down")
	failing := embedFunc(func(ctx context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, boom
		}
		return []float32{1}, nil
	})

	results := EmbedAll(context.Background(), failing, []string{"ok", "bad", "ok"}, 2)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.NoError(t, results[2].Err)
}

// embedFunc adapts a function to the Embedder interface for tests.
type embedFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedFunc) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

func (f embedFunc) Dimension() int { return 0 }
