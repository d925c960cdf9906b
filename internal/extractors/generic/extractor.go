// Package generic extracts DOCX and plain text files with lu4p/cat.
package generic

import (
	"context"
	"fmt"

	"github.com/lu4p/cat"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor reads documents cat understands (docx, odt, rtf, plain text).
type Extractor struct {
	format domain.Format
}

// New creates an extractor registered under format.
func New(format domain.Format) *Extractor {
	return &Extractor{format: format}
}

// Format returns the format this extractor handles.
func (e *Extractor) Format() domain.Format {
	return e.format
}

// Extract returns the text of the file at path.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.ExtractionError{Path: path, Format: e.format, Err: err}
	}

	text, err := cat.File(path)
	if err != nil {
		logger.Warn("could not extract text from %s: %v", path, err)
		return "", &domain.ExtractionError{
			Path:   path,
			Format: e.format,
			Err:    fmt.Errorf("read %s: %w", e.format, err),
		}
	}
	return text, nil
}
