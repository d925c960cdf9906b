package driving

import (
	"context"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// IngestService runs ingestion jobs.
type IngestService interface {
	// IngestFolder extracts every file under root and indexes the results.
	IngestFolder(ctx context.Context, root string) (*domain.BatchReport, error)

	// IngestURLs fetches each URL and indexes the results.
	IngestURLs(ctx context.Context, urls []string) (*domain.BatchReport, error)

	// IngestFiles extracts the given files and indexes the results.
	IngestFiles(ctx context.Context, paths []string) (*domain.BatchReport, error)

	// Stage returns the current stage of the running job.
	Stage() domain.Stage
}
