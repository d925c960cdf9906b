package driving

import (
	"context"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// RetrievalService answers similarity queries against a vector store.
type RetrievalService interface {
	// Retrieve embeds query and returns the k most similar documents.
	Retrieve(ctx context.Context, query string, k int) ([]domain.QueryResult, error)

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)

	// Stats describes the store and its embedding model binding.
	Stats(ctx context.Context) (domain.StoreStats, error)
}
