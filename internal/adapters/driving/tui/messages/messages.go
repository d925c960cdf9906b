// Package messages defines Bubbletea message types for the TUI.
package messages

import (
	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewQuery is the question input and results view.
	ViewQuery ViewType = iota
	// ViewIngest runs folder and web ingestion.
	ViewIngest
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewQuery:
		return "query"
	case ViewIngest:
		return "ingest"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// RetrievalCompleted carries query results back to the model.
type RetrievalCompleted struct {
	Query   string
	Results []domain.QueryResult
	Err     error
}

// IngestCompleted carries the report of a finished ingestion job.
type IngestCompleted struct {
	Target string
	Report *domain.BatchReport
	Err    error
}

// StatsLoaded carries the store statistics.
type StatsLoaded struct {
	Stats domain.StoreStats
	Err   error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}
