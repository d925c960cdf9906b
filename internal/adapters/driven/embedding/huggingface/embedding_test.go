package huggingface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragpipe/internal/adapters/driven/embedding/httpjson"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

func echoServer(t *testing.T, wantPath, wantAuth string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			return
		}
		assert.Equal(t, wantPath, r.URL.Path)
		assert.Equal(t, wantAuth, r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		out := make([][]float32, len(req.Inputs))
		for i, in := range req.Inputs {
			out[i] = []float32{float32(len(in)), float32(i)}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{})

	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", s.ModelName())
	assert.Equal(t, 384, s.Dimensions())
	assert.Equal(t,
		"https://router.huggingface.co/hf-inference/models/sentence-transformers/all-MiniLM-L6-v2/pipeline/feature-extraction",
		s.endpoint)
}

func TestEmbedBatch_TEI(t *testing.T) {
	srv := echoServer(t, "/embed", "")
	defer srv.Close()

	s := NewEmbeddingService(Config{BaseURL: srv.URL + "/"})
	vecs, err := s.EmbedBatch(context.Background(), []string{"a", "bbb"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {3, 1}}, vecs)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestEmbedBatch_HostedAPI(t *testing.T) {
	srv := echoServer(t, "/models/BAAI/bge-small-en-v1.5/pipeline/feature-extraction", "Bearer hf_test")
	defer srv.Close()

	s := NewEmbeddingService(Config{
		InferenceURL: srv.URL + "/models",
		APIKey:       "hf_test",
		Model:        "BAAI/bge-small-en-v1.5",
	})
	vec, err := s.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0}, vec)
	assert.Equal(t, 384, s.Dimensions())
	assert.NoError(t, s.Ping(context.Background()))
}

func TestEmbedBatch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"Model is loading"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewEmbeddingService(Config{
		BaseURL: srv.URL,
		Retry:   []httpjson.Option{httpjson.WithRetries(1), httpjson.WithBackoff(time.Millisecond, time.Millisecond)},
	})
	_, err := s.Embed(context.Background(), "x")

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.ErrorContains(t, err, "status 503")
	assert.Error(t, s.Ping(context.Background()))
}

func TestEmbedBatch_TokenLevelOutputRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[[0.1,0.2],[0.3,0.4]]]`))
	}))
	defer srv.Close()

	_, err := NewEmbeddingService(Config{BaseURL: srv.URL}).Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "decode response")
}

func TestEmbedBatch_MaxInputs(t *testing.T) {
	srv := echoServer(t, "/embed", "")
	defer srv.Close()

	s := NewEmbeddingService(Config{BaseURL: srv.URL, MaxInputs: 2})
	vecs, err := s.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})

	require.NoError(t, err)
	// The index restarts with each request.
	assert.Equal(t, [][]float32{{1, 0}, {2, 1}, {3, 0}}, vecs)
}
