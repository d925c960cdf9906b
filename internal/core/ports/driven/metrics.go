package driven

import (
	"time"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// MetricsRecorder observes pipeline activity.
type MetricsRecorder interface {
	// ItemProcessed counts one file or URL outcome.
	ItemProcessed(kind domain.ItemKind, status domain.OutcomeStatus)

	// ChunksIndexed counts documents written to the store.
	ChunksIndexed(n int)

	// StageDuration records how long a stage took.
	StageDuration(stage domain.Stage, d time.Duration)

	// QueryServed records a retrieval and how many results it returned.
	QueryServed(results int, d time.Duration)
}
