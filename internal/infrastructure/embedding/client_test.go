package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jinstronda/jinstronda-memory/internal/config"
)

func newTestClient(baseURL string, batchSize int) *Client {
	return NewClient(&config.EmbeddingConfig{
		BaseURL:   baseURL,
		Model:     "test-model",
		BatchSize: batchSize,
	}, "test-key")
}

func embedServer(t *testing.T, requests *atomic.Int64, failFirst int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if n <= failFirst {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)

		var resp embedResponse
		// 倒序返回，验证按 index 归位
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(len(req.Input[i]))}})
		}
		require.NoError(t, json.NewEncoder(w).Encode(&resp))
	}))
}

func TestClient_EmbedBatchesAndOrders(t *testing.T) {
	var requests atomic.Int64
	srv := embedServer(t, &requests, 0)
	defer srv.Close()

	c := newTestClient(srv.URL, 2)

	texts := []string{"a", "bb", "ccc"}
	vectors, err := c.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Equal(t, int64(2), requests.Load())

	require.Len(t, vectors, 3)
	for i, text := range texts {
		require.Equal(t, []float32{float32(len(text))}, vectors[i])
	}
}

func TestClient_EmbedRetriesOnServerError(t *testing.T) {
	var requests atomic.Int64
	srv := embedServer(t, &requests, 1)
	defer srv.Close()

	c := newTestClient(srv.URL, 10)

	vectors, err := c.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Equal(t, int64(2), requests.Load())
	require.Len(t, vectors, 1)
}

func TestClient_EmbedGivesUpAfterRetries(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 10)

	_, err := c.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	require.Contains(t, err.Error(), fmt.Sprintf("status=%d", http.StatusBadGateway))
	require.Equal(t, int64(3), requests.Load())
}

func TestClient_EmbedEmptyInput(t *testing.T) {
	var requests atomic.Int64
	srv := embedServer(t, &requests, 0)
	defer srv.Close()

	c := newTestClient(srv.URL, 10)

	vectors, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, vectors)
	require.Zero(t, requests.Load())
}
