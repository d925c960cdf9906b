// Package ocr recognises text in images and rendered PDF pages by shelling
// out to tesseract and pdftoppm.
package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
)

// Tool names.
const (
	Tesseract = "tesseract"
	PDFToPPM  = "pdftoppm"
)

// DefaultDPI is the resolution PDF pages are rendered at before OCR.
const DefaultDPI = 300

// Engine runs OCR through a command runner.
type Engine struct {
	runner   driven.CommandRunner
	dpi      int
	language string
}

// Option configures the engine.
type Option func(*Engine)

// WithDPI sets the PDF render resolution.
func WithDPI(dpi int) Option {
	return func(e *Engine) {
		if dpi > 0 {
			e.dpi = dpi
		}
	}
}

// WithLanguage sets the tesseract language (e.g. "eng", "deu").
func WithLanguage(lang string) Option {
	return func(e *Engine) {
		e.language = lang
	}
}

// New creates an OCR engine.
func New(runner driven.CommandRunner, opts ...Option) *Engine {
	e := &Engine{
		runner: runner,
		dpi:    DefaultDPI,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Available reports whether tesseract can be run.
func (e *Engine) Available() bool {
	return e.runner != nil && e.runner.Available(Tesseract)
}

// Image returns the text tesseract recognises in the image at path.
func (e *Engine) Image(ctx context.Context, path string) (string, error) {
	if e.runner == nil {
		return "", fmt.Errorf("ocr %s: no command runner", path)
	}

	args := []string{path, "stdout"}
	if e.language != "" {
		args = append(args, "-l", e.language)
	}
	out, err := e.runner.Run(ctx, Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("ocr %s: %w", path, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// PDFPage renders one page (1-based) of a PDF to PNG and OCRs it.
func (e *Engine) PDFPage(ctx context.Context, path string, page int) (string, error) {
	if e.runner == nil {
		return "", fmt.Errorf("ocr %s page %d: no command runner", path, page)
	}

	dir, err := os.MkdirTemp("", "ragpipe-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create ocr temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	n := strconv.Itoa(page)
	_, err = e.runner.Run(ctx, PDFToPPM,
		"-f", n, "-l", n,
		"-r", strconv.Itoa(e.dpi),
		"-png", "-singlefile",
		path, prefix,
	)
	if err != nil {
		return "", fmt.Errorf("render %s page %d: %w", path, page, err)
	}

	return e.Image(ctx, prefix+".png")
}
