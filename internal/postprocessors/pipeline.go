// Package postprocessors prepares extracted records for embedding:
// text processors (cleaning) run first, then the chunker.
package postprocessors

import (
	"strings"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/postprocessors/chunker"
)

// Ensure Pipeline implements the interface.
var _ driven.TextPipeline = (*Pipeline)(nil)

// TextProcessor transforms record content before chunking.
type TextProcessor interface {
	// Name returns the processor name.
	Name() string

	// Process returns the transformed text. It must be pure.
	Process(text string) string
}

// Pipeline chains text processors and a chunker.
type Pipeline struct {
	processors []TextProcessor
	chunker    *chunker.Chunker
}

// NewPipeline creates a pipeline that runs processors in the order provided
// and splits the result with ch. A nil chunker uses the defaults.
func NewPipeline(ch *chunker.Chunker, processors ...TextProcessor) *Pipeline {
	if ch == nil {
		ch = chunker.New()
	}
	return &Pipeline{
		processors: processors,
		chunker:    ch,
	}
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor TextProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of text processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Chunker returns the pipeline's chunker.
func (p *Pipeline) Chunker() *chunker.Chunker {
	return p.chunker
}

// Clean runs every processor over each record's content.
// Records left with only whitespace are returned in dropped, in input order.
func (p *Pipeline) Clean(records []domain.SourceRecord) (kept, dropped []domain.SourceRecord) {
	for _, r := range records {
		text := r.Content
		for _, proc := range p.processors {
			text = proc.Process(text)
		}
		if strings.TrimSpace(text) == "" {
			dropped = append(dropped, r)
			continue
		}
		kept = append(kept, r.WithContent(text))
	}
	return kept, dropped
}

// Chunk splits cleaned records into chunks.
func (p *Pipeline) Chunk(records []domain.SourceRecord) []domain.Chunk {
	return p.chunker.Chunk(records)
}
