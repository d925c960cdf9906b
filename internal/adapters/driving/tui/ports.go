// Package tui provides an interactive terminal user interface for ragpipe.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces used by the TUI.
type Ports struct {
	// Retrieval answers questions.
	Retrieval driving.RetrievalService

	// Ingest runs ingestion jobs. Optional; the ingest tab is hidden without it.
	Ingest driving.IngestService

	// K is the number of results per question.
	K int
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
