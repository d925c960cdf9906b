package driven

import (
	"context"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// Extractor turns one file into plain text.
type Extractor interface {
	// Format returns the format this extractor handles.
	Format() domain.Format

	// Extract returns the text of the file at path.
	// Failures are *domain.ExtractionError.
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorRegistry dispatches a file to the extractor for its format.
type ExtractorRegistry interface {
	// Register adds or replaces the extractor for its format.
	Register(e Extractor)

	// Extract determines the format from the path and extracts the text.
	// Excluded formats return domain.ErrExcluded.
	Extract(ctx context.Context, path string) (string, error)

	// Formats returns the formats with a registered extractor.
	Formats() []domain.Format
}
