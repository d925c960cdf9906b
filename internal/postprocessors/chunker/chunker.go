// Package chunker splits cleaned text into bounded, overlapping chunks.
package chunker

import (
	"strconv"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// Span is one window of a text, measured in runes.
type Span struct {
	// Start is the rune offset of the first character.
	Start int

	// End is the rune offset one past the last character.
	End int

	// Text is the window content.
	Text string
}

// Len returns the span length in runes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Chunker splits text into windows of at most chunkSize runes.
// Consecutive windows share exactly overlap runes.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a new chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't reach chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Size returns the maximum chunk length.
func (c *Chunker) Size() int {
	return c.chunkSize
}

// Overlap returns the shared length of consecutive chunks.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split cuts text into windows.
//
// Each window ends at the last paragraph break, else line break, else sentence
// end, else whitespace found in its second half; failing all of those it is cut
// at exactly chunkSize. The next window starts overlap runes before the
// previous end. The remainder is emitted as the final window once it fits.
func (c *Chunker) Split(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	spans := make([]Span, 0, n/(c.chunkSize-c.overlap)+1)
	start := 0
	for {
		if n-start <= c.chunkSize {
			spans = append(spans, Span{Start: start, End: n, Text: string(runes[start:n])})
			return spans
		}

		end := c.cut(runes, start, start+c.chunkSize)
		spans = append(spans, Span{Start: start, End: end, Text: string(runes[start:end])})
		start = end - c.overlap
	}
}

// cut picks the end of the window [start, limit).
// The result is always greater than start+overlap so the next window advances.
func (c *Chunker) cut(runes []rune, start, limit int) int {
	lo := start + c.chunkSize/2
	if floor := start + c.overlap + 1; lo < floor {
		lo = floor
	}
	if lo > limit {
		return limit
	}

	for _, at := range boundaries {
		for i := limit; i >= lo; i-- {
			if at(runes, start, i) {
				return i
			}
		}
	}
	return limit
}

// boundary reports whether a window starting at start may end just before i.
type boundary func(runes []rune, start, i int) bool

// boundaries in priority order: paragraph, line, sentence, word.
var boundaries = []boundary{
	func(r []rune, start, i int) bool {
		return i-2 >= start && r[i-1] == '\n' && r[i-2] == '\n'
	},
	func(r []rune, _, i int) bool {
		return r[i-1] == '\n'
	},
	func(r []rune, start, i int) bool {
		if i-2 < start || !unicode.IsSpace(r[i-1]) {
			return false
		}
		switch r[i-2] {
		case '.', '!', '?':
			return true
		}
		return false
	},
	func(r []rune, _, i int) bool {
		return unicode.IsSpace(r[i-1])
	},
}

// Chunk splits each record into chunks attributed to record.Origin().
// Records with empty content produce no chunks. Order follows the input.
func (c *Chunker) Chunk(records []domain.SourceRecord) []domain.Chunk {
	var chunks []domain.Chunk
	for _, r := range records {
		chunks = append(chunks, c.ChunkRecord(r)...)
	}
	return chunks
}

// ChunkRecord splits a single record.
func (c *Chunker) ChunkRecord(record domain.SourceRecord) []domain.Chunk {
	spans := c.Split(record.Content)
	if len(spans) == 0 {
		return nil
	}

	source := record.Origin()
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, span := range spans {
		id := uuid.New().String()
		meta := make(map[string]string, len(record.Metadata)+5)
		for k, v := range record.Metadata {
			meta[k] = v
		}
		meta[domain.MetaSource] = source
		meta[domain.MetaPosition] = strconv.Itoa(i)
		meta[domain.MetaChunkID] = id
		if record.Path != "" {
			meta[domain.MetaPath] = record.Path
		}
		if record.URL != "" {
			meta[domain.MetaURL] = record.URL
		}

		chunks = append(chunks, domain.Chunk{
			ID:       id,
			Text:     span.Text,
			Source:   source,
			Position: i,
			Offset:   span.Start,
			Metadata: meta,
		})
	}
	return chunks
}
