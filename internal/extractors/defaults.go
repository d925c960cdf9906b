package extractors

import (
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/extractors/generic"
	"github.com/custodia-labs/ragpipe/internal/extractors/ocr"
	"github.com/custodia-labs/ragpipe/internal/extractors/pdf"
	"github.com/custodia-labs/ragpipe/internal/extractors/unstructured"
)

// NewDefaultRegistry registers every built-in extractor.
// OCR is enabled when cfg.OCR is set and runner is non-nil.
func NewDefaultRegistry(cfg domain.ExtractionSettings, runner driven.CommandRunner) *Registry {
	var engine *ocr.Engine
	if cfg.OCR && runner != nil {
		engine = ocr.New(runner)
	}

	pdfOpts := []pdf.Option{pdf.WithMinTextLength(cfg.PDFMinTextLength)}
	var unstructuredOpts []unstructured.Option
	if engine != nil {
		pdfOpts = append(pdfOpts, pdf.WithOCR(engine))
		unstructuredOpts = append(unstructuredOpts, unstructured.WithOCR(engine))
	}

	r := NewRegistry()
	r.Register(pdf.New(pdfOpts...))
	r.Register(generic.New(domain.FormatDocx))
	r.Register(generic.New(domain.FormatText))
	r.Register(unstructured.New(unstructuredOpts...))
	return r
}
