package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragpipe/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/web"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/extractors"
	"github.com/custodia-labs/ragpipe/internal/logger"
	"github.com/custodia-labs/ragpipe/internal/postprocessors"
)

// failingEmbedder wraps the hashing embedder and fails batches on demand.
type failingEmbedder struct {
	*hashing.EmbeddingService
	err   error
	short bool
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vecs, err := f.EmbeddingService.EmbedBatch(ctx, texts)
	if f.short && len(vecs) > 0 {
		return vecs[:len(vecs)-1], err
	}
	return vecs, err
}

// failingStore rejects every write.
type failingStore struct {
	*memory.VectorStore
	err error
}

func (f *failingStore) Add(context.Context, []domain.IndexedDocument) error {
	return f.err
}

// recordingMetrics counts observations.
type recordingMetrics struct {
	mu     sync.Mutex
	items  map[domain.OutcomeStatus]int
	chunks int
	stages map[domain.Stage]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		items:  make(map[domain.OutcomeStatus]int),
		stages: make(map[domain.Stage]int),
	}
}

func (m *recordingMetrics) ItemProcessed(_ domain.ItemKind, status domain.OutcomeStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[status]++
}

func (m *recordingMetrics) ChunksIndexed(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks += n
}

func (m *recordingMetrics) StageDuration(stage domain.Stage, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[stage]++
}

func (m *recordingMetrics) QueryServed(int, time.Duration) {}

type harness struct {
	orch     *Orchestrator
	store    *memory.VectorStore
	embedder *hashing.EmbeddingService
}

func newHarness(t *testing.T, opts ...OrchestratorOption) *harness {
	t.Helper()
	settings := domain.DefaultSettings()
	embedder := hashing.NewEmbeddingService(64)
	store := memory.NewVectorStore(embedder.ModelName(), embedder.Dimensions())
	t.Cleanup(func() { store.Close() })

	orch := NewOrchestrator(
		extractors.NewDefaultRegistry(settings.Extraction, nil),
		web.New(web.Config{Timeout: 5 * time.Second}),
		postprocessors.NewDefault(settings.Chunk),
		embedder,
		store,
		append([]OrchestratorOption{WithWorkers(4)}, opts...)...,
	)
	return &harness{orch: orch, store: store, embedder: embedder}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func statuses(outcomes []domain.ItemOutcome) map[string]domain.OutcomeStatus {
	m := make(map[string]domain.OutcomeStatus, len(outcomes))
	for _, o := range outcomes {
		m[filepath.Base(o.Item)] = o.Status
	}
	return m
}

func TestOrchestrator_IngestFolder_LongFileMakesThreeChunks(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	writeFile(t, dir, "long.txt", strings.Repeat("x", 2500))

	report, err := h.orch.IngestFolder(context.Background(), dir)
	require.NoError(t, err)

	assert.True(t, report.Completed())
	assert.Equal(t, 1, report.Records)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 3, report.Stored)

	n, err := h.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestOrchestrator_ExtractFolder_PartialFailureIsolation(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha document text")
	writeFile(t, dir, "nested/b.txt", "beta document text")
	writeFile(t, dir, "c.txt", "gamma document text")
	writeFile(t, dir, "broken.pdf", "this is not a pdf")
	writeFile(t, dir, "broken.docx", "this is not a docx")

	batch, err := h.orch.ExtractFolder(context.Background(), dir)
	require.NoError(t, err)

	assert.Len(t, batch.Outcomes, 5)
	assert.Len(t, batch.Records, 3)

	got := statuses(batch.Outcomes)
	assert.Equal(t, domain.OutcomeOK, got["a.txt"])
	assert.Equal(t, domain.OutcomeOK, got["b.txt"])
	assert.Equal(t, domain.OutcomeFailed, got["broken.pdf"])
	assert.Equal(t, domain.OutcomeFailed, got["broken.docx"])

	for _, r := range batch.Records {
		assert.NotEmpty(t, r.FileName)
		assert.Equal(t, filepath.Base(r.Path), r.FileName)
		assert.Equal(t, "txt", r.Metadata[domain.MetaFormat])
	}
}

func TestOrchestrator_ExtractFolder_WarnsOncePerFailedFile(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	h := newHarness(t)
	dir := t.TempDir()
	writeFile(t, dir, "ok.txt", "fine")
	pdfPath := writeFile(t, dir, "broken.pdf", "this is not a pdf")
	docxPath := writeFile(t, dir, "broken.docx", "this is not a docx")

	_, err := h.orch.ExtractFolder(context.Background(), dir)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	mentions := func(path string) int {
		n := 0
		for _, line := range lines {
			if strings.Contains(line, path) {
				n++
			}
		}
		return n
	}
	assert.Len(t, lines, 2, buf.String())
	assert.Equal(t, 1, mentions(pdfPath), buf.String())
	assert.Equal(t, 1, mentions(docxPath), buf.String())
}

func TestOrchestrator_ExtractFolder_OrderFollowsDiscovery(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	names := []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt", "f.txt"}
	for _, name := range names {
		writeFile(t, dir, name, "content of "+name)
	}

	batch, err := h.orch.ExtractFolder(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, batch.Records, len(names))
	for i, name := range names {
		assert.Equal(t, name, batch.Records[i].FileName)
		assert.Equal(t, name, filepath.Base(batch.Outcomes[i].Item))
	}
}

func TestOrchestrator_ExtractFolder_IncludesHiddenEntries(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	dotfile := writeFile(t, dir, ".env.txt", "dotfile text")
	nested := writeFile(t, dir, filepath.Join(".notes", "todo.txt"), "hidden folder text")

	batch, err := h.orch.ExtractFolder(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, batch.Records, 2)
	var paths []string
	for _, r := range batch.Records {
		paths = append(paths, r.Path)
	}
	assert.ElementsMatch(t, []string{dotfile, nested}, paths)
}

func TestOrchestrator_ExtractFolder_ExcludedAndEmpty(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	writeFile(t, dir, "sheet.xlsx", "not read")
	writeFile(t, dir, "blank.txt", "   \n\n ")

	batch, err := h.orch.ExtractFolder(context.Background(), dir)
	require.NoError(t, err)

	assert.Empty(t, batch.Records)
	got := statuses(batch.Outcomes)
	assert.Equal(t, domain.OutcomeExcluded, got["sheet.xlsx"])
	assert.Equal(t, domain.OutcomeSkipped, got["blank.txt"])
}

func TestOrchestrator_ExtractFolder_Errors(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.ExtractFolder(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	file := writeFile(t, t.TempDir(), "file.txt", "x")
	_, err = h.orch.ExtractFolder(context.Background(), file)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOrchestrator_ExtractURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			fmt.Fprint(w, "<html><body><p>First paragraph.</p><p>Second.</p></body></html>")
		case "/bare":
			fmt.Fprint(w, "<html><body><div>no paragraphs</div></body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Run("404 yields no records and no error", func(t *testing.T) {
		h := newHarness(t)
		batch := h.orch.ExtractURLs(context.Background(), []string{srv.URL + "/missing"})
		assert.Empty(t, batch.Records)
		require.Len(t, batch.Outcomes, 1)
		assert.Equal(t, domain.OutcomeFailed, batch.Outcomes[0].Status)

		var netErr *domain.NetworkError
		require.ErrorAs(t, batch.Outcomes[0].Err, &netErr)
		assert.Equal(t, http.StatusNotFound, netErr.StatusCode)
	})

	t.Run("paragraph text with URL attribution", func(t *testing.T) {
		h := newHarness(t)
		url := srv.URL + "/page"
		batch := h.orch.ExtractURLs(context.Background(), []string{url, srv.URL + "/bare"})

		require.Len(t, batch.Records, 2)
		assert.Equal(t, "First paragraph. Second.", batch.Records[0].Content)
		assert.Equal(t, url, batch.Records[0].URL)
		assert.Equal(t, url, batch.Records[0].Origin())
		assert.Empty(t, batch.Records[1].Content)
	})

	t.Run("ingest drops blank pages at cleaning", func(t *testing.T) {
		h := newHarness(t)
		report, err := h.orch.IngestURLs(context.Background(), []string{srv.URL + "/page", srv.URL + "/bare", srv.URL + "/gone"})
		require.NoError(t, err)

		assert.Equal(t, 1, report.Records)
		assert.Equal(t, 1, report.Stored)
		require.Len(t, report.Outcomes, 3)
		assert.Equal(t, domain.OutcomeOK, report.Outcomes[0].Status)
		assert.Equal(t, domain.OutcomeSkipped, report.Outcomes[1].Status)
		assert.Equal(t, domain.StageCleaning, report.Outcomes[1].Stage)
		assert.Equal(t, domain.OutcomeFailed, report.Outcomes[2].Status)
	})

	t.Run("no fetcher", func(t *testing.T) {
		orch := NewOrchestrator(extractors.NewRegistry(), nil, postprocessors.NewDefault(domain.DefaultSettings().Chunk),
			hashing.NewEmbeddingService(8), memory.NewVectorStore("", 0))
		batch := orch.ExtractURLs(context.Background(), []string{srv.URL + "/page"})
		assert.Empty(t, batch.Records)
		assert.Equal(t, domain.OutcomeFailed, batch.Outcomes[0].Status)
	})
}

func TestOrchestrator_Index_Attribution(t *testing.T) {
	h := newHarness(t)
	batch := domain.ExtractionBatch{
		Records: []domain.SourceRecord{
			{Content: "a file record", FileName: "notes.txt", Path: "/tmp/notes.txt"},
			{Content: "a web record", URL: "https://example.com/a"},
			{Content: "an anonymous record"},
		},
	}

	report, err := h.orch.Index(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 3, report.Stored)

	vec, err := h.embedder.Embed(context.Background(), "record")
	require.NoError(t, err)
	results, err := h.store.Search(context.Background(), vec, 10)
	require.NoError(t, err)

	sources := make(map[string]bool)
	for _, r := range results {
		sources[r.Document.Source()] = true
		assert.NotEmpty(t, r.Document.ID)
	}
	assert.True(t, sources["notes.txt"])
	assert.True(t, sources["https://example.com/a"])
	assert.True(t, sources[domain.UnknownSource])
}

func TestOrchestrator_StageHook(t *testing.T) {
	var mu sync.Mutex
	var seen []domain.Stage
	h := newHarness(t, WithStageHook(func(_, to domain.Stage) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, to)
	}))

	_, err := h.orch.Index(context.Background(), domain.ExtractionBatch{
		Records: []domain.SourceRecord{{Content: "hello world", FileName: "h.txt"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.Stage{
		domain.StageExtracting,
		domain.StageCleaning,
		domain.StageChunking,
		domain.StageEmbedding,
		domain.StageStored,
		domain.StageIdle,
	}, seen)
	assert.Equal(t, domain.StageIdle, h.orch.Stage())
}

func TestOrchestrator_EmbeddingFailureAbortsJob(t *testing.T) {
	settings := domain.DefaultSettings()
	store := memory.NewVectorStore("", 0)
	embedder := &failingEmbedder{EmbeddingService: hashing.NewEmbeddingService(16), err: errors.New("model offline")}
	orch := NewOrchestrator(extractors.NewRegistry(), nil, postprocessors.NewDefault(settings.Chunk), embedder, store)

	report, err := orch.Index(context.Background(), domain.ExtractionBatch{
		Records: []domain.SourceRecord{{Content: "some text", FileName: "a.txt"}},
	})
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))

	var embErr *domain.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, "a.txt", embErr.Item)

	require.NotNil(t, report)
	assert.Equal(t, domain.StageEmbedding, report.Stage)
	assert.False(t, report.Completed())
	assert.Equal(t, 1, report.Chunks)
	assert.Zero(t, report.Stored)
	assert.Equal(t, domain.StageIdle, orch.Stage())

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOrchestrator_EmbeddingCountMismatch(t *testing.T) {
	embedder := &failingEmbedder{EmbeddingService: hashing.NewEmbeddingService(16), short: true}
	orch := NewOrchestrator(extractors.NewRegistry(), nil, postprocessors.NewDefault(domain.DefaultSettings().Chunk),
		embedder, memory.NewVectorStore("", 0))

	_, err := orch.Index(context.Background(), domain.ExtractionBatch{
		Records: []domain.SourceRecord{{Content: "one", FileName: "a.txt"}, {Content: "two", FileName: "b.txt"}},
	})
	var embErr *domain.EmbeddingError
	assert.ErrorAs(t, err, &embErr)
}

func TestOrchestrator_StoreFailureAbortsJob(t *testing.T) {
	embedder := hashing.NewEmbeddingService(16)
	store := &failingStore{VectorStore: memory.NewVectorStore("", 0), err: errors.New("disk full")}
	orch := NewOrchestrator(extractors.NewRegistry(), nil, postprocessors.NewDefault(domain.DefaultSettings().Chunk),
		embedder, store)

	report, err := orch.Index(context.Background(), domain.ExtractionBatch{
		Records: []domain.SourceRecord{{Content: "text", FileName: "a.txt"}},
	})
	require.Error(t, err)

	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "add", storeErr.Op)
	assert.True(t, domain.IsFatal(err))
	assert.Equal(t, domain.StageEmbedding, report.Stage)
	assert.Zero(t, report.Stored)
}

func TestOrchestrator_BatchesEmbeddings(t *testing.T) {
	counter := &countingEmbedder{EmbeddingService: hashing.NewEmbeddingService(16)}
	orch := NewOrchestrator(extractors.NewRegistry(), nil, postprocessors.NewDefault(domain.DefaultSettings().Chunk),
		counter, memory.NewVectorStore("", 0), WithBatchSize(2))

	records := make([]domain.SourceRecord, 5)
	for i := range records {
		records[i] = domain.SourceRecord{Content: fmt.Sprintf("record %d", i), FileName: fmt.Sprintf("%d.txt", i)}
	}
	report, err := orch.Index(context.Background(), domain.ExtractionBatch{Records: records})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Stored)
	assert.Equal(t, []int{2, 2, 1}, counter.sizes)
}

type countingEmbedder struct {
	*hashing.EmbeddingService
	sizes []int
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.sizes = append(c.sizes, len(texts))
	return c.EmbeddingService.EmbedBatch(ctx, texts)
}

func TestOrchestrator_Metrics(t *testing.T) {
	metrics := newRecordingMetrics()
	h := newHarness(t, WithMetrics(metrics))
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "b.xlsx", "excluded")

	_, err := h.orch.IngestFolder(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, metrics.items[domain.OutcomeOK])
	assert.Equal(t, 1, metrics.items[domain.OutcomeExcluded])
	assert.Equal(t, 1, metrics.chunks)
	assert.Equal(t, 1, metrics.stages[domain.StageEmbedding])
}

func TestOrchestrator_IngestIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", strings.Repeat("the quick brown fox jumps over the lazy dog. ", 60))
	writeFile(t, dir, "b.txt", strings.Repeat("pack my box with five dozen liquor jugs. ", 60))

	query := func() []domain.QueryResult {
		h := newHarness(t)
		_, err := h.orch.IngestFolder(context.Background(), dir)
		require.NoError(t, err)
		results, err := NewRetrievalService(h.embedder, h.store, nil).Retrieve(context.Background(), "lazy dog", 4)
		require.NoError(t, err)
		return results
	}

	first, second := query(), query()
	require.Len(t, first, 4)
	require.Len(t, second, 4)
	for i := range first {
		assert.Equal(t, first[i].Document.Text, second[i].Document.Text)
		assert.Equal(t, first[i].Document.Source(), second[i].Document.Source())
		assert.InDelta(t, first[i].Score, second[i].Score, 1e-9)
	}
}

var _ driven.EmbeddingService = (*failingEmbedder)(nil)
