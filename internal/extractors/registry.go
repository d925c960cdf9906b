package extractors

import (
	"context"
	"sync"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry dispatches files to the extractor registered for their format.
type Registry struct {
	mu         sync.RWMutex
	extractors map[domain.Format]driven.Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[domain.Format]driven.Extractor),
	}
}

// Register adds or replaces the extractor for its format.
func (r *Registry) Register(e driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[e.Format()] = e
}

// Get returns the extractor for a format.
func (r *Registry) Get(format domain.Format) (driven.Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[format]
	return e, ok
}

// Formats returns the formats with a registered extractor, in dispatch order.
func (r *Registry) Formats() []domain.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var formats []domain.Format
	for _, f := range domain.AllFormats() {
		if _, ok := r.extractors[f]; ok {
			formats = append(formats, f)
		}
	}
	return formats
}

// Extract determines the format of path and runs its extractor.
// Excluded formats return domain.ErrExcluded without touching the file.
// Failures are logged here or by the extractor, once per file.
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	format := domain.FormatFromPath(path)
	if format.IsExcluded() {
		return "", domain.ErrExcluded
	}

	e, ok := r.Get(format)
	if !ok {
		logger.Warn("no extractor for %s (%s)", path, format)
		return "", &domain.ExtractionError{Path: path, Format: format, Err: domain.ErrUnsupportedFormat}
	}
	return e.Extract(ctx, path)
}
