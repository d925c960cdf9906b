// Package qdrant provides a driven.VectorStore backed by a Qdrant collection.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/ragpipe/internal/adapters/driven/storage/similarity"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Payload keys.
const (
	payloadID        = "id"
	payloadText      = "text"
	payloadSeq       = "seq"
	payloadCreatedAt = "created_at"
	payloadModel     = "model"
	payloadMeta      = "meta."
)

// Ensure VectorStore implements the interfaces.
var (
	_ driven.VectorStore    = (*VectorStore)(nil)
	_ driven.StoreDescriber = (*VectorStore)(nil)
)

// Config holds Qdrant connection settings.
type Config struct {
	Host       string
	Port       int
	Collection string
	APIKey     string
	UseTLS     bool
}

// pointsClient is the part of *qdrant.Client used by the store.
type pointsClient interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Close() error
}

// VectorStore stores documents as points in a cosine-distance collection.
type VectorStore struct {
	client     pointsClient
	collection string
	location   string
	model      string

	mu         sync.Mutex
	dimensions int
	lastSeq    int64
	closed     bool
}

// NewVectorStore connects to Qdrant and ensures the collection exists with
// the given dimension. An existing collection of another size is refused.
func NewVectorStore(ctx context.Context, cfg Config, model string, dimensions int) (*VectorStore, error) {
	if cfg.Host == "" {
		cfg.Host = domain.DefaultQdrantHost
	}
	if cfg.Port == 0 {
		cfg.Port = domain.DefaultQdrantPort
	}
	if cfg.Collection == "" {
		cfg.Collection = domain.DefaultQdrantCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, &domain.StoreError{Op: "open", Err: fmt.Errorf("connecting to qdrant: %w", err)}
	}

	location := fmt.Sprintf("qdrant://%s:%d/%s", cfg.Host, cfg.Port, cfg.Collection)
	s, err := newVectorStore(ctx, client, cfg.Collection, location, model, dimensions)
	if err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func newVectorStore(ctx context.Context, client pointsClient, collection, location, model string,
	dimensions int) (*VectorStore, error) {
	s := &VectorStore{
		client:     client,
		collection: collection,
		location:   location,
		model:      model,
		dimensions: dimensions,
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, &domain.StoreError{Op: "open", Err: err}
	}
	return s, nil
}

func (s *VectorStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.collection, err)
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("reading collection %s: %w", s.collection, err)
		}
		size := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
		if s.dimensions > 0 && size > 0 && size != s.dimensions {
			return fmt.Errorf("%w: collection %s has %d, configured %d",
				domain.ErrDimensionMismatch, s.collection, size, s.dimensions)
		}
		if size > 0 {
			s.dimensions = size
		}
		return nil
	}

	if s.dimensions <= 0 {
		return fmt.Errorf("%w: creating collection %s requires a dimension", domain.ErrInvalidInput, s.collection)
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.collection, err)
	}
	logger.Info("qdrant: created collection %s (%d dims)", s.collection, s.dimensions)
	return nil
}

// Add upserts documents as new points.
func (s *VectorStore) Add(ctx context.Context, docs []domain.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &domain.StoreError{Op: "add", Err: domain.ErrStoreClosed}
	}

	seq := time.Now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	now := time.Now()

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		if len(doc.Embedding) != s.dimensions {
			return &domain.StoreError{
				Op:  "add",
				Err: fmt.Errorf("%w: document %s has %d, store has %d", domain.ErrDimensionMismatch, doc.ID, len(doc.Embedding), s.dimensions),
			}
		}
		created := doc.CreatedAt
		if created.IsZero() {
			created = now
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID()),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(payload(doc, seq+int64(i), created, s.model)),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return &domain.StoreError{Op: "add", Err: fmt.Errorf("qdrant upsert: %w", err)}
	}
	s.lastSeq = seq + int64(len(docs)) - 1
	return nil
}

// pointID returns a fresh point ID. Every Add appends, so document IDs are
// kept in the payload rather than used as point IDs.
func pointID() string {
	return uuid.NewString()
}

func payload(doc domain.IndexedDocument, seq int64, created time.Time, model string) map[string]any {
	p := map[string]any{
		payloadID:        doc.ID,
		payloadText:      doc.Text,
		payloadSeq:       seq,
		payloadCreatedAt: created.UnixNano(),
		payloadModel:     model,
	}
	for k, v := range doc.Metadata {
		p[payloadMeta+k] = v
	}
	return p
}

// Search queries the collection and orders equal scores by insertion.
func (s *VectorStore) Search(ctx context.Context, embedding []float32, k int) ([]domain.QueryResult, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, &domain.StoreError{Op: "search", Err: domain.ErrStoreClosed}
	}
	if k <= 0 {
		return []domain.QueryResult{}, nil
	}

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &domain.StoreError{Op: "search", Err: fmt.Errorf("qdrant query: %w", err)}
	}

	cands := make([]similarity.Candidate, len(hits))
	for i, hit := range hits {
		cands[i] = similarity.Candidate{
			Seq:   hit.GetPayload()[payloadSeq].GetIntegerValue(),
			Score: float64(hit.GetScore()),
			Index: i,
		}
	}
	top := similarity.TopK(cands, k)

	results := make([]domain.QueryResult, len(top))
	for i, c := range top {
		results[i] = domain.QueryResult{
			Document: document(hits[c.Index].GetPayload()),
			Score:    c.Score,
		}
	}
	return results, nil
}

func document(p map[string]*qdrant.Value) domain.IndexedDocument {
	doc := domain.IndexedDocument{
		ID:        p[payloadID].GetStringValue(),
		Text:      p[payloadText].GetStringValue(),
		CreatedAt: time.Unix(0, p[payloadCreatedAt].GetIntegerValue()),
		Metadata:  make(map[string]string),
	}
	for k, v := range p {
		if key, ok := strings.CutPrefix(k, payloadMeta); ok {
			doc.Metadata[key] = v.GetStringValue()
		}
	}
	return doc
}

// Count returns the exact number of points.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, &domain.StoreError{Op: "count", Err: fmt.Errorf("qdrant count: %w", err)}
	}
	return int(n), nil
}

// Info reports the collection binding.
func (s *VectorStore) Info(_ context.Context) (driven.StoreInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return driven.StoreInfo{
		Backend:    domain.StoreQdrant.String(),
		Model:      s.model,
		Dimensions: s.dimensions,
		Location:   s.location,
	}, nil
}

// Close closes the gRPC connection.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.client.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing qdrant client: %w", err)
	}
	return nil
}
