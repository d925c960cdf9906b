// Package storage opens the configured vector store backend.
package storage

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragpipe/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/ragpipe/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
)

// Open returns the vector store selected by settings, bound to model and dimensions.
// An empty model opens an existing store without checking its binding.
func Open(ctx context.Context, settings domain.StoreSettings, model string, dimensions int) (driven.VectorStore, error) {
	switch settings.Backend {
	case domain.StoreSQLite, "":
		store, err := sqlite.NewVectorStore(settings.PersistDir, model, dimensions)
		if err != nil {
			return nil, err
		}
		return store, nil
	case domain.StoreMemory:
		return memory.NewVectorStore(model, dimensions), nil
	case domain.StoreQdrant:
		store, err := qdrant.NewVectorStore(ctx, qdrant.Config{
			Host:       settings.QdrantHost,
			Port:       settings.QdrantPort,
			Collection: settings.QdrantCollection,
		}, model, dimensions)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", domain.ErrInvalidInput, settings.Backend)
	}
}
