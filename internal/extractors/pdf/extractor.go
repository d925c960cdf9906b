// Package pdf extracts text from PDF files.
//
// Extraction runs an explicit state sequence:
//
//	direct -> (ocr for blank pages) -> decrypt -> done | failed
//
// The direct pass reads each page's text with a timeout. Pages without text
// are rendered and OCR'd when an OCR engine is configured. If the direct pass
// fails or yields less than the minimum text length, the file is reopened with
// the decrypting reader. Non-blank decrypted text wins; otherwise the direct
// text is kept; if both are blank the file fails.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// DefaultPageTimeout bounds text extraction of a single page.
const DefaultPageTimeout = 10 * time.Second

// State is a step of the extraction sequence.
type State string

// Extraction states.
const (
	StateDirect  State = "direct"
	StateOCR     State = "ocr"
	StateDecrypt State = "decrypt"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Trace records the states visited while extracting one file.
type Trace struct {
	// States in the order they were entered.
	States []State

	// Pages is the page count of the last document opened.
	Pages int

	// OCRPages lists the 1-based pages that were OCR'd.
	OCRPages []int
}

func (t *Trace) enter(s State) {
	t.States = append(t.States, s)
}

// PageOCR recognises the text of a rendered PDF page.
type PageOCR interface {
	PDFPage(ctx context.Context, path string, page int) (string, error)
}

// Extractor handles PDF documents.
type Extractor struct {
	minTextLength int
	pageTimeout   time.Duration
	passwords     []string
	ocr           PageOCR

	openDirect  opener
	openDecrypt opener
}

// Option configures the extractor.
type Option func(*Extractor)

// WithMinTextLength sets the trimmed length below which the decrypting
// reader is tried.
func WithMinTextLength(n int) Option {
	return func(e *Extractor) {
		if n >= 0 {
			e.minTextLength = n
		}
	}
}

// WithPageTimeout bounds text extraction of a single page.
func WithPageTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.pageTimeout = d
		}
	}
}

// WithPasswords adds passwords tried by the decrypting reader after the empty one.
func WithPasswords(passwords ...string) Option {
	return func(e *Extractor) {
		e.passwords = append(e.passwords, passwords...)
	}
}

// WithOCR enables OCR of pages without extractable text.
func WithOCR(o PageOCR) Option {
	return func(e *Extractor) {
		e.ocr = o
	}
}

// New creates a PDF extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		minTextLength: domain.DefaultPDFMinText,
		pageTimeout:   DefaultPageTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.openDirect = openPlain
	e.openDecrypt = openEncrypted(e.passwords)
	return e
}

// Format returns the format this extractor handles.
func (e *Extractor) Format() domain.Format {
	return domain.FormatPDF
}

// Extract returns the text of the PDF at path.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	text, _, err := e.ExtractWithTrace(ctx, path)
	return text, err
}

// ExtractWithTrace is Extract that also reports the states visited.
func (e *Extractor) ExtractWithTrace(ctx context.Context, path string) (string, Trace, error) {
	var trace Trace

	trace.enter(StateDirect)
	direct, directErr := e.read(ctx, path, e.openDirect, true, &trace)
	if directErr != nil {
		logger.Debug("pdf %s: direct extraction failed: %v", path, directErr)
	}

	trimmed := strings.TrimSpace(direct)
	if directErr == nil && trimmed != "" && len(trimmed) >= e.minTextLength {
		trace.enter(StateDone)
		return direct, trace, nil
	}

	// Short or failed direct text is replaced by the decrypt retry, whatever
	// it yields.
	if err := ctx.Err(); err != nil {
		trace.enter(StateFailed)
		return "", trace, &domain.ExtractionError{Path: path, Format: domain.FormatPDF, Err: err}
	}

	trace.enter(StateDecrypt)
	retry, retryErr := e.read(ctx, path, e.openDecrypt, false, &trace)
	if retryErr == nil && strings.TrimSpace(retry) != "" {
		trace.enter(StateDone)
		return retry, trace, nil
	}

	trace.enter(StateFailed)
	cause := directErr
	if cause == nil {
		cause = retryErr
	}
	if cause == nil {
		cause = domain.ErrEmptyContent
	}
	logger.Warn("could not extract text from %s: %v", path, cause)
	return "", trace, &domain.ExtractionError{Path: path, Format: domain.FormatPDF, Err: cause}
}

// read opens path and concatenates page text in page order.
// Blank pages are OCR'd when useOCR is set and an engine is configured.
func (e *Extractor) read(ctx context.Context, path string, open opener, useOCR bool, trace *Trace) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	doc, err := open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	trace.Pages = pages

	var sb strings.Builder
	var pageErrs []error
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		pageText, err := e.pageText(ctx, doc, i)
		if err != nil {
			pageErrs = append(pageErrs, fmt.Errorf("page %d: %w", i, err))
			pageText = ""
		}

		if strings.TrimSpace(pageText) == "" && useOCR && e.ocr != nil {
			if len(trace.OCRPages) == 0 {
				trace.enter(StateOCR)
			}
			trace.OCRPages = append(trace.OCRPages, i)
			ocrText, ocrErr := e.ocr.PDFPage(ctx, path, i)
			if ocrErr != nil {
				logger.Debug("pdf %s: ocr page %d: %v", path, i, ocrErr)
			}
			pageText = ocrText
		}

		if pageText == "" {
			continue
		}
		sb.WriteString(pageText)
		if !strings.HasSuffix(pageText, "\n") {
			sb.WriteString("\n")
		}
	}

	if sb.Len() == 0 && len(pageErrs) > 0 {
		return "", errors.Join(pageErrs...)
	}
	return sb.String(), nil
}

// pageText extracts one page with a timeout. A panic in the parser is an error.
func (e *Extractor) pageText(ctx context.Context, doc document, page int) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("malformed page: %v", r)}
			}
		}()
		text, err := doc.PageText(page)
		ch <- result{text, err}
	}()

	timer := time.NewTimer(e.pageTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-timer.C:
		return "", fmt.Errorf("timeout after %s", e.pageTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
