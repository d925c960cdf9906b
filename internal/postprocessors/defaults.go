package postprocessors

import (
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/postprocessors/chunker"
	"github.com/custodia-labs/ragpipe/internal/postprocessors/cleaner"
)

// NewDefault builds the standard pipeline: the default denylist cleaner
// followed by a chunker configured from settings.
func NewDefault(cfg domain.ChunkSettings) *Pipeline {
	ch := chunker.New(
		chunker.WithChunkSize(cfg.Size),
		chunker.WithOverlap(cfg.Overlap),
	)
	return NewPipeline(ch, cleaner.Default)
}
