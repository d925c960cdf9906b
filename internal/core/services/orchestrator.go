package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Ensure Orchestrator implements the interface.
var _ driving.IngestService = (*Orchestrator)(nil)

// StageHook observes stage transitions.
type StageHook func(from, to domain.Stage)

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithWorkers bounds concurrent extraction and fetch work. Values below 1 are ignored.
func WithWorkers(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithBatchSize sets how many chunks are embedded per request. Values below 1 are ignored.
func WithBatchSize(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithMetrics records pipeline activity.
func WithMetrics(m driven.MetricsRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithStageHook registers a callback invoked on every stage transition.
func WithStageHook(h StageHook) OrchestratorOption {
	return func(o *Orchestrator) {
		o.hook = h
	}
}

// Orchestrator runs ingestion jobs: extract, clean, chunk, embed, store.
// Jobs run one at a time; extraction inside a job is concurrent.
type Orchestrator struct {
	registry driven.ExtractorRegistry
	fetcher  driven.WebFetcher
	pipeline driven.TextPipeline
	embedder driven.EmbeddingService
	store    driven.VectorStore
	metrics  driven.MetricsRecorder

	workers   int
	batchSize int
	hook      StageHook

	// jobMu serialises jobs, and with them every store write.
	jobMu sync.Mutex

	stageMu sync.RWMutex
	stage   domain.Stage
}

// NewOrchestrator creates an orchestrator writing to store.
// The fetcher may be nil if only files are ingested.
func NewOrchestrator(
	registry driven.ExtractorRegistry,
	fetcher driven.WebFetcher,
	pipeline driven.TextPipeline,
	embedder driven.EmbeddingService,
	store driven.VectorStore,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		registry:  registry,
		fetcher:   fetcher,
		pipeline:  pipeline,
		embedder:  embedder,
		store:     store,
		metrics:   noopMetrics{},
		workers:   runtime.NumCPU(),
		batchSize: domain.DefaultEmbedBatchSize,
		stage:     domain.StageIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Stage returns the current stage of the running job.
func (o *Orchestrator) Stage() domain.Stage {
	o.stageMu.RLock()
	defer o.stageMu.RUnlock()
	return o.stage
}

func (o *Orchestrator) setStage(next domain.Stage) {
	o.stageMu.Lock()
	prev := o.stage
	if !prev.CanTransition(next) {
		logger.Warn("unexpected stage transition %s -> %s", prev, next)
	}
	o.stage = next
	o.stageMu.Unlock()

	logger.Debug("stage: %s -> %s", prev, next)
	if o.hook != nil {
		o.hook(prev, next)
	}
}

// IngestFolder extracts every file under root and indexes the results.
func (o *Orchestrator) IngestFolder(ctx context.Context, root string) (*domain.BatchReport, error) {
	return o.run(ctx, func(ctx context.Context) (domain.ExtractionBatch, error) {
		return o.ExtractFolder(ctx, root)
	})
}

// IngestURLs fetches each URL and indexes the results.
func (o *Orchestrator) IngestURLs(ctx context.Context, urls []string) (*domain.BatchReport, error) {
	return o.run(ctx, func(ctx context.Context) (domain.ExtractionBatch, error) {
		return o.ExtractURLs(ctx, urls), ctx.Err()
	})
}

// IngestFiles extracts the given files and indexes the results.
func (o *Orchestrator) IngestFiles(ctx context.Context, paths []string) (*domain.BatchReport, error) {
	return o.run(ctx, func(ctx context.Context) (domain.ExtractionBatch, error) {
		return o.ExtractFiles(ctx, paths), ctx.Err()
	})
}

// Index cleans, chunks, embeds and stores an already extracted batch.
func (o *Orchestrator) Index(ctx context.Context, batch domain.ExtractionBatch) (*domain.BatchReport, error) {
	return o.run(ctx, func(context.Context) (domain.ExtractionBatch, error) {
		return batch, nil
	})
}

// ExtractFolder walks root recursively and extracts every regular file.
// Records and outcomes follow discovery order. Per-file failures are
// outcomes, not errors.
func (o *Orchestrator) ExtractFolder(ctx context.Context, root string) (domain.ExtractionBatch, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ExtractionBatch{}, fmt.Errorf("%w: folder %s", domain.ErrNotFound, root)
		}
		return domain.ExtractionBatch{}, fmt.Errorf("stat folder: %w", err)
	}
	if !info.IsDir() {
		return domain.ExtractionBatch{}, fmt.Errorf("%w: %s is not a folder", domain.ErrInvalidInput, root)
	}

	paths, err := discover(ctx, root)
	if err != nil {
		return domain.ExtractionBatch{}, err
	}
	logger.Info("discovered %d files under %s", len(paths), root)

	return o.ExtractFiles(ctx, paths), ctx.Err()
}

// discover lists regular files under root in lexical walk order.
// Unreadable subdirectories are logged and skipped.
func discover(ctx context.Context, root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk folder: %w", err)
	}
	return paths, nil
}

// ExtractFiles extracts each path on the worker pool.
func (o *Orchestrator) ExtractFiles(ctx context.Context, paths []string) domain.ExtractionBatch {
	records := make([]*domain.SourceRecord, len(paths))
	outcomes := make([]domain.ItemOutcome, len(paths))

	o.forEach(ctx, len(paths), func(ctx context.Context, i int) {
		records[i], outcomes[i] = o.extractFile(ctx, paths[i])
	})

	return collect(records, outcomes)
}

func (o *Orchestrator) extractFile(ctx context.Context, path string) (*domain.SourceRecord, domain.ItemOutcome) {
	outcome := domain.ItemOutcome{Item: path, Kind: domain.ItemFile, Stage: domain.StageExtracting}
	if err := ctx.Err(); err != nil {
		outcome.Status = domain.OutcomeFailed
		outcome.Reason = err.Error()
		outcome.Err = err
		return nil, outcome
	}

	format := domain.FormatFromPath(path)
	text, err := o.registry.Extract(ctx, path)
	switch {
	case errors.Is(err, domain.ErrExcluded):
		logger.Debug("excluded %s (%s)", path, format)
		outcome.Status = domain.OutcomeExcluded
		outcome.Reason = fmt.Sprintf("%s files are not ingested", format)
		return nil, outcome
	case errors.Is(err, domain.ErrEmptyContent):
		logger.Debug("no text in %s", path)
		outcome.Status = domain.OutcomeSkipped
		outcome.Reason = "no text extracted"
		outcome.Err = err
		return nil, outcome
	case err != nil:
		logger.Debug("failed to extract %s: %v", path, err)
		outcome.Status = domain.OutcomeFailed
		outcome.Reason = err.Error()
		outcome.Err = err
		return nil, outcome
	case strings.TrimSpace(text) == "":
		outcome.Status = domain.OutcomeSkipped
		outcome.Reason = "no text extracted"
		return nil, outcome
	}

	outcome.Status = domain.OutcomeOK
	return &domain.SourceRecord{
		Content:  text,
		FileName: filepath.Base(path),
		Path:     path,
		Metadata: map[string]string{
			domain.MetaFormat: format.String(),
			domain.MetaPath:   path,
		},
	}, outcome
}

// ExtractURLs fetches each URL on the worker pool. Failed fetches are
// outcomes; a page without paragraphs still yields a (blank) record.
func (o *Orchestrator) ExtractURLs(ctx context.Context, urls []string) domain.ExtractionBatch {
	records := make([]*domain.SourceRecord, len(urls))
	outcomes := make([]domain.ItemOutcome, len(urls))

	o.forEach(ctx, len(urls), func(ctx context.Context, i int) {
		records[i], outcomes[i] = o.fetchURL(ctx, urls[i])
	})

	return collect(records, outcomes)
}

func (o *Orchestrator) fetchURL(ctx context.Context, url string) (*domain.SourceRecord, domain.ItemOutcome) {
	outcome := domain.ItemOutcome{Item: url, Kind: domain.ItemURL, Stage: domain.StageExtracting}

	if o.fetcher == nil {
		outcome.Status = domain.OutcomeFailed
		outcome.Reason = "no web fetcher configured"
		return nil, outcome
	}

	text, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		logger.Warn("failed to fetch %s: %v", url, err)
		outcome.Status = domain.OutcomeFailed
		outcome.Reason = err.Error()
		outcome.Err = err
		return nil, outcome
	}

	outcome.Status = domain.OutcomeOK
	return &domain.SourceRecord{
		Content:  text,
		URL:      url,
		Metadata: map[string]string{domain.MetaURL: url},
	}, outcome
}

// forEach runs fn for 0..n-1 with at most o.workers in flight.
// Each call writes only its own slot, so no locking is needed.
func (o *Orchestrator) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range n {
		g.Go(func() error {
			fn(gctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

func collect(records []*domain.SourceRecord, outcomes []domain.ItemOutcome) domain.ExtractionBatch {
	batch := domain.ExtractionBatch{Outcomes: outcomes}
	for _, r := range records {
		if r != nil {
			batch.Records = append(batch.Records, *r)
		}
	}
	return batch
}

// extractFunc produces the batch for a job.
type extractFunc func(ctx context.Context) (domain.ExtractionBatch, error)

// run executes one job through every stage. A fatal error leaves the
// report at the stage that failed and returns the orchestrator to Idle.
func (o *Orchestrator) run(ctx context.Context, extract extractFunc) (*domain.BatchReport, error) {
	o.jobMu.Lock()
	defer o.jobMu.Unlock()

	report := domain.NewBatchReport(uuid.NewString())
	logger.Section("Ingestion " + report.JobID)

	defer func() {
		report.FinishedAt = time.Now()
		if o.Stage() != domain.StageIdle {
			o.setStage(domain.StageIdle)
		}
		for _, out := range report.Outcomes {
			o.metrics.ItemProcessed(out.Kind, out.Status)
		}
	}()

	o.enter(report, domain.StageExtracting)
	start := time.Now()
	batch, err := extract(ctx)
	report.Outcomes = append(report.Outcomes, batch.Outcomes...)
	o.metrics.StageDuration(domain.StageExtracting, time.Since(start))
	if err != nil {
		return report, err
	}

	if err := o.index(ctx, report, batch.Records); err != nil {
		return report, err
	}

	logger.Info("job %s: %d records, %d chunks, %d stored, %d skipped in %s",
		report.JobID, report.Records, report.Chunks, report.Stored, len(report.Skipped()), report.Duration())
	return report, nil
}

func (o *Orchestrator) enter(report *domain.BatchReport, stage domain.Stage) {
	o.setStage(stage)
	report.Stage = stage
}

func (o *Orchestrator) index(ctx context.Context, report *domain.BatchReport, records []domain.SourceRecord) error {
	// Cleaning
	o.enter(report, domain.StageCleaning)
	start := time.Now()
	kept, dropped := o.pipeline.Clean(records)
	markDropped(report, dropped)
	report.Records = len(kept)
	o.metrics.StageDuration(domain.StageCleaning, time.Since(start))
	if err := ctx.Err(); err != nil {
		return err
	}

	// Chunking
	o.enter(report, domain.StageChunking)
	start = time.Now()
	chunks := o.pipeline.Chunk(kept)
	report.Chunks = len(chunks)
	o.metrics.StageDuration(domain.StageChunking, time.Since(start))
	logger.Debug("chunked %d records into %d chunks", len(kept), len(chunks))

	// Embedding
	o.enter(report, domain.StageEmbedding)
	start = time.Now()
	docs, err := o.embed(ctx, chunks)
	o.metrics.StageDuration(domain.StageEmbedding, time.Since(start))
	if err != nil {
		return err
	}

	// Store
	start = time.Now()
	if len(docs) > 0 {
		if err := o.store.Add(ctx, docs); err != nil {
			var storeErr *domain.StoreError
			if !errors.As(err, &storeErr) {
				err = &domain.StoreError{Op: "add", Err: err}
			}
			return err
		}
	}
	report.Stored = len(docs)
	o.metrics.ChunksIndexed(len(docs))
	o.enter(report, domain.StageStored)
	o.metrics.StageDuration(domain.StageStored, time.Since(start))
	return nil
}

// embed embeds chunks in batches. Any failure aborts the job.
func (o *Orchestrator) embed(ctx context.Context, chunks []domain.Chunk) ([]domain.IndexedDocument, error) {
	docs := make([]domain.IndexedDocument, 0, len(chunks))
	now := time.Now()

	for start := 0; start < len(chunks); start += o.batchSize {
		end := min(start+o.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := o.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, &domain.EmbeddingError{Item: batch[0].Source, Stage: domain.StageEmbedding, Err: err}
		}
		if len(vectors) != len(batch) {
			return nil, &domain.EmbeddingError{
				Item:  batch[0].Source,
				Stage: domain.StageEmbedding,
				Err:   fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(batch)),
			}
		}

		for i, c := range batch {
			if len(vectors[i]) == 0 {
				return nil, &domain.EmbeddingError{
					Item:  c.Source,
					Stage: domain.StageEmbedding,
					Err:   fmt.Errorf("empty embedding for chunk %d", c.Position),
				}
			}
			docs = append(docs, domain.IndexedDocument{
				ID:        c.ID,
				Embedding: vectors[i],
				Text:      c.Text,
				Metadata:  c.Metadata,
				CreatedAt: now,
			})
		}
		logger.Debug("embedded %d/%d chunks", end, len(chunks))
	}
	return docs, nil
}

// markDropped turns the outcomes of records emptied by cleaning into skips.
func markDropped(report *domain.BatchReport, dropped []domain.SourceRecord) {
	for _, r := range dropped {
		item := r.Item()
		for i := range report.Outcomes {
			out := &report.Outcomes[i]
			if out.Item == item && out.OK() {
				out.Status = domain.OutcomeSkipped
				out.Stage = domain.StageCleaning
				out.Reason = "no text after cleaning"
				break
			}
		}
		logger.Debug("dropped %s: no text after cleaning", item)
	}
}

// noopMetrics discards observations when no recorder is configured.
type noopMetrics struct{}

func (noopMetrics) ItemProcessed(domain.ItemKind, domain.OutcomeStatus) {}
func (noopMetrics) ChunksIndexed(int)                                   {}
func (noopMetrics) StageDuration(domain.Stage, time.Duration)           {}
func (noopMetrics) QueryServed(int, time.Duration)                      {}
