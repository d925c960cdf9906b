package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

func TestRecorder_ItemProcessed(t *testing.T) {
	r := NewRecorder()

	r.ItemProcessed(domain.ItemFile, domain.OutcomeOK)
	r.ItemProcessed(domain.ItemFile, domain.OutcomeOK)
	r.ItemProcessed(domain.ItemURL, domain.OutcomeFailed)

	assert.InDelta(t, 2, testutil.ToFloat64(r.items.WithLabelValues("file", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.items.WithLabelValues("url", "failed")), 0)
}

func TestRecorder_ChunksIndexed(t *testing.T) {
	r := NewRecorder()

	r.ChunksIndexed(3)
	r.ChunksIndexed(0)
	r.ChunksIndexed(-1)

	assert.InDelta(t, 3, testutil.ToFloat64(r.chunks), 0)
}

func TestRecorder_Durations(t *testing.T) {
	r := NewRecorder()

	r.StageDuration(domain.StageEmbedding, 250*time.Millisecond)
	r.QueryServed(4, 10*time.Millisecond)
	r.RequestServed("/api/query", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(r.stageDuration))
	assert.InDelta(t, 1, testutil.ToFloat64(r.queries), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(r.queryDuration))
	assert.InDelta(t, 1, testutil.ToFloat64(r.requests.WithLabelValues("/api/query", "200")), 0)
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	a := NewRecorder()
	b := NewRecorder()

	a.ChunksIndexed(5)

	assert.InDelta(t, 5, testutil.ToFloat64(a.chunks), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.chunks), 0)
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ChunksIndexed(7)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ragpipe_chunks_indexed_total 7")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNop(t *testing.T) {
	var n Nop
	n.ItemProcessed(domain.ItemFile, domain.OutcomeOK)
	n.ChunksIndexed(1)
	n.StageDuration(domain.StageIdle, time.Second)
	n.QueryServed(1, time.Second)
}
