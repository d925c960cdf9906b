package driven

import (
	"context"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// VectorStore persists indexed documents and answers similarity queries.
// A store is an explicit handle; several independent stores may coexist.
type VectorStore interface {
	// Add appends documents. Adding the same content twice stores it twice.
	Add(ctx context.Context, docs []domain.IndexedDocument) error

	// Search returns up to k documents ordered by cosine similarity, best first.
	// Equal scores are ordered by insertion, oldest first.
	Search(ctx context.Context, embedding []float32, k int) ([]domain.QueryResult, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// StoreInfo describes the embedding model a store was written with.
type StoreInfo struct {
	// Backend is the store implementation name.
	Backend string

	// Model is the embedding model bound to the store, empty if nothing was written yet.
	Model string

	// Dimensions is the vector size bound to the store, 0 if nothing was written yet.
	Dimensions int

	// Location is a human-readable location (file path, collection name).
	Location string
}

// StoreDescriber is implemented by stores that can report their binding.
type StoreDescriber interface {
	Info(ctx context.Context) (StoreInfo, error)
}
