// Package unstructured is the best-effort extractor for every format without
// a dedicated strategy. It partitions a file into text elements and joins
// them with newlines.
package unstructured

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// ImageOCR recognises text in an image file.
type ImageOCR interface {
	Image(ctx context.Context, path string) (string, error)
}

var (
	htmlExts     = map[string]bool{".html": true, ".htm": true, ".xhtml": true}
	markdownExts = map[string]bool{".md": true, ".markdown": true}
	imageExts    = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".tif": true,
		".tiff": true, ".bmp": true, ".gif": true, ".webp": true,
	}
)

// errBinary marks content that is neither text nor a known binary format.
var errBinary = fmt.Errorf("%w: binary content", domain.ErrUnsupportedFormat)

// Extractor partitions files into elements.
type Extractor struct {
	ocr ImageOCR
}

// Option configures the extractor.
type Option func(*Extractor)

// WithOCR enables text recognition for images.
func WithOCR(o ImageOCR) Option {
	return func(e *Extractor) {
		e.ocr = o
	}
}

// New creates an unstructured extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Format returns the format this extractor handles.
func (e *Extractor) Format() domain.Format {
	return domain.FormatUnstructured
}

// Extract returns the elements of the file at path joined with "\n".
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	elements, err := e.Partition(ctx, path)
	if err != nil {
		logger.Warn("could not extract text from %s: %v", path, err)
		return "", &domain.ExtractionError{Path: path, Format: domain.FormatUnstructured, Err: err}
	}
	return strings.Join(elements, "\n"), nil
}

// Partition splits the file at path into text elements in document order.
func (e *Extractor) Partition(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if imageExts[ext] {
		return e.partitionImage(ctx, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	switch {
	case htmlExts[ext] || looksLikeHTML(data):
		return partitionHTML(bytes.NewReader(data))
	case !isText(data):
		return nil, errBinary
	case emlExts[ext]:
		return partitionEmail(data)
	case markdownExts[ext]:
		return paragraphs(stripMarkdown(string(data))), nil
	default:
		return paragraphs(string(data)), nil
	}
}

func (e *Extractor) partitionImage(ctx context.Context, path string) ([]string, error) {
	if e.ocr == nil {
		return nil, fmt.Errorf("%w: image without ocr", domain.ErrUnsupportedFormat)
	}
	text, err := e.ocr.Image(ctx, path)
	if err != nil {
		return nil, err
	}
	return paragraphs(text), nil
}

// isText reports whether data is UTF-8 without NUL bytes.
func isText(data []byte) bool {
	return utf8.Valid(data) && bytes.IndexByte(data, 0) < 0
}

// looksLikeHTML sniffs the start of data for a doctype or html tag.
func looksLikeHTML(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.ToLower(bytes.TrimSpace(head))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

// paragraphs splits text on blank lines and joins the lines of each
// paragraph with single spaces.
func paragraphs(text string) []string {
	var out []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = current[:0]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out
}
