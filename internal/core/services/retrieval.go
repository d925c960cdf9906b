package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService answers similarity queries against one vector store.
type RetrievalService struct {
	embedder driven.EmbeddingService
	store    driven.VectorStore
	metrics  driven.MetricsRecorder
}

// NewRetrievalService creates a retrieval service. The embedder must be the
// model the store was written with. metrics may be nil.
func NewRetrievalService(
	embedder driven.EmbeddingService,
	store driven.VectorStore,
	metrics driven.MetricsRecorder,
) *RetrievalService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &RetrievalService{
		embedder: embedder,
		store:    store,
		metrics:  metrics,
	}
}

// Retrieve embeds query and returns the k most similar documents, best first.
// An empty store returns no results without calling the embedder.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) ([]domain.QueryResult, error) {
	logger.Section("Retrieval")
	logger.Debug("Query: %q, k=%d", query, k)

	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	start := time.Now()
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if count == 0 {
		logger.Debug("store is empty, returning no results")
		s.metrics.QueryServed(0, time.Since(start))
		return []domain.QueryResult{}, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &domain.EmbeddingError{Item: "query", Stage: domain.StageEmbedding, Err: err}
	}

	results, err := s.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}

	logger.Debug("%d results from %d documents in %s", len(results), count, time.Since(start))
	s.metrics.QueryServed(len(results), time.Since(start))
	return results, nil
}

// Count returns the number of indexed documents.
func (s *RetrievalService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Info describes the store binding, falling back to the embedder's model
// for backends that do not record one.
func (s *RetrievalService) Info(ctx context.Context) (driven.StoreInfo, error) {
	if d, ok := s.store.(driven.StoreDescriber); ok {
		return d.Info(ctx)
	}
	return driven.StoreInfo{Model: s.embedder.ModelName(), Dimensions: s.embedder.Dimensions()}, nil
}

// Stats reports the store binding and document count.
func (s *RetrievalService) Stats(ctx context.Context) (domain.StoreStats, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("describe store: %w", err)
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("count documents: %w", err)
	}
	stats := domain.StoreStats{
		Backend:    info.Backend,
		Location:   info.Location,
		Model:      info.Model,
		Dimensions: info.Dimensions,
		Documents:  n,
	}
	if stats.Model == "" {
		stats.Model = s.embedder.ModelName()
	}
	if stats.Dimensions == 0 {
		stats.Dimensions = s.embedder.Dimensions()
	}
	return stats, nil
}
