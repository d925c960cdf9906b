package domain

import "time"

// Metadata keys stored alongside every indexed document.
const (
	MetaSource   = "source"
	MetaPath     = "path"
	MetaURL      = "url"
	MetaPosition = "position"
	MetaChunkID  = "chunk_id"
	MetaFormat   = "format"
)

// Chunk is a bounded, contiguous segment of one SourceRecord.
type Chunk struct {
	// ID uniquely identifies this chunk.
	ID string

	// Text is the chunk content. Its rune count never exceeds the chunk size.
	Text string

	// Source is the originating record's Origin(), copied unchanged.
	Source string

	// Position is the 0-based order of the chunk within its source.
	Position int

	// Offset is the rune offset of the chunk start within the record content.
	Offset int

	// Metadata holds attribution details carried into the index.
	Metadata map[string]string
}

// IndexedDocument is an embedded chunk as held by a vector store.
type IndexedDocument struct {
	// ID uniquely identifies this document within a store.
	ID string

	// Embedding is the vector produced by the store's embedding model.
	Embedding []float32

	// Text is the chunk content.
	Text string

	// Metadata always carries MetaSource.
	Metadata map[string]string

	// CreatedAt is when the document was added.
	CreatedAt time.Time
}

// Source returns the document's attribution.
func (d IndexedDocument) Source() string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[MetaSource]
}

// QueryResult is a single retrieval hit.
type QueryResult struct {
	// Document is the matching indexed document.
	Document IndexedDocument

	// Score is the cosine similarity to the query, higher is better.
	Score float64
}

// StoreStats describes a vector store and what it holds.
type StoreStats struct {
	// Backend is the store implementation (sqlite, memory, qdrant).
	Backend string `json:"backend"`

	// Location is the database file or collection.
	Location string `json:"location"`

	// Model is the embedding model the store is bound to.
	Model string `json:"model"`

	// Dimensions is the vector size.
	Dimensions int `json:"dimensions"`

	// Documents is the number of stored documents.
	Documents int `json:"documents"`
}
