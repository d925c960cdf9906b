package driven

import "github.com/custodia-labs/ragpipe/internal/core/domain"

// TextPipeline prepares extracted records for embedding.
type TextPipeline interface {
	// Clean normalises each record's content. Records left with only
	// whitespace are returned in dropped, in input order.
	Clean(records []domain.SourceRecord) (kept, dropped []domain.SourceRecord)

	// Chunk splits cleaned records into bounded, overlapping chunks.
	Chunk(records []domain.SourceRecord) []domain.Chunk
}
