package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/custodia-labs/ragpipe/internal/adapters/driven/storage/similarity"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
)

// Ensure VectorStore implements the interfaces.
var (
	_ driven.VectorStore    = (*VectorStore)(nil)
	_ driven.StoreDescriber = (*VectorStore)(nil)
)

// entry is a stored document with its precomputed norm.
type entry struct {
	doc  domain.IndexedDocument
	norm float64
}

// VectorStore is an in-memory implementation of driven.VectorStore.
// Contents are lost when the process exits.
type VectorStore struct {
	mu         sync.RWMutex
	model      string
	dimensions int
	entries    []entry
	closed     bool
}

// NewVectorStore creates an empty in-memory store for the given model.
// A zero dimension is bound by the first Add.
func NewVectorStore(model string, dimensions int) *VectorStore {
	return &VectorStore{
		model:      model,
		dimensions: dimensions,
	}
}

// Add appends documents.
func (s *VectorStore) Add(ctx context.Context, docs []domain.IndexedDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &domain.StoreError{Op: "add", Err: domain.ErrStoreClosed}
	}

	dims := s.dimensions
	if dims == 0 {
		dims = len(docs[0].Embedding)
	}
	for _, doc := range docs {
		if len(doc.Embedding) == 0 || len(doc.Embedding) != dims {
			return &domain.StoreError{
				Op:  "add",
				Err: fmt.Errorf("%w: document %s has %d, store has %d", domain.ErrDimensionMismatch, doc.ID, len(doc.Embedding), dims),
			}
		}
	}
	s.dimensions = dims

	now := time.Now()
	for _, doc := range docs {
		stored := doc
		stored.Embedding = append([]float32(nil), doc.Embedding...)
		stored.Metadata = maps.Clone(doc.Metadata)
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		s.entries = append(s.entries, entry{doc: stored, norm: similarity.Norm(stored.Embedding)})
	}
	return nil
}

// Search returns up to k documents by cosine similarity.
func (s *VectorStore) Search(ctx context.Context, embedding []float32, k int) ([]domain.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &domain.StoreError{Op: "search", Err: domain.ErrStoreClosed}
	}
	if k <= 0 || len(s.entries) == 0 {
		return []domain.QueryResult{}, nil
	}
	if len(embedding) != s.dimensions {
		return nil, &domain.StoreError{
			Op:  "search",
			Err: fmt.Errorf("%w: query has %d, store has %d", domain.ErrDimensionMismatch, len(embedding), s.dimensions),
		}
	}

	queryNorm := similarity.Norm(embedding)
	cands := make([]similarity.Candidate, len(s.entries))
	for i, e := range s.entries {
		cands[i] = similarity.Candidate{
			Seq:   int64(i),
			Score: similarity.CosineNorm(embedding, queryNorm, e.doc.Embedding, e.norm),
			Index: i,
		}
	}

	top := similarity.TopK(cands, k)
	results := make([]domain.QueryResult, len(top))
	for i, c := range top {
		doc := s.entries[c.Index].doc
		doc.Metadata = maps.Clone(doc.Metadata)
		results[i] = domain.QueryResult{Document: doc, Score: c.Score}
	}
	return results, nil
}

// Count returns the number of stored documents.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Info reports the model binding.
func (s *VectorStore) Info(_ context.Context) (driven.StoreInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return driven.StoreInfo{
		Backend:    domain.StoreMemory.String(),
		Model:      s.model,
		Dimensions: s.dimensions,
		Location:   ":memory:",
	}, nil
}

// Close drops all documents.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}
