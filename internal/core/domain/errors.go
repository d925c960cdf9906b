package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates no extractor is registered for a format.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExcluded indicates a source is deliberately left out of ingestion.
	// Spreadsheets are excluded; this is not a failure.
	ErrExcluded = errors.New("excluded from ingestion")

	// ErrEmptyContent indicates extraction or cleaning produced no text.
	ErrEmptyContent = errors.New("empty content")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured
	// or cannot be reached.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrModelMismatch indicates a vector store was written with a different
	// embedding model than the one in use.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrDimensionMismatch indicates an embedding does not have the store's dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStoreClosed indicates the vector store has been closed.
	ErrStoreClosed = errors.New("vector store closed")
)

// ExtractionError is a per-file failure. It is never fatal to a batch.
type ExtractionError struct {
	// Path is the file that could not be extracted.
	Path string

	// Format is the strategy that was attempted.
	Format Format

	// Err is the underlying cause.
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Path, e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NetworkError is a per-URL failure. It is never fatal to a batch.
type NetworkError struct {
	// URL is the address that was fetched.
	URL string

	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// EmbeddingError aborts an ingestion job. A missing embedding would corrupt retrieval.
type EmbeddingError struct {
	// Item identifies what was being embedded (a source or "query").
	Item string

	// Stage is where the failure happened.
	Stage Stage

	// Err is the underlying cause.
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed %s (stage %s): %v", e.Item, e.Stage, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// StoreError aborts an ingestion job, e.g. when the persistence directory is unwritable.
type StoreError struct {
	// Op is the store operation that failed.
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort an ingestion job.
func IsFatal(err error) bool {
	var embedErr *EmbeddingError
	var storeErr *StoreError
	return errors.As(err, &embedErr) || errors.As(err, &storeErr)
}
