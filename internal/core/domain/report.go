package domain

import "time"

// Stage is a state of the ingestion job state machine.
type Stage string

// Ingestion stages, in order.
const (
	StageIdle       Stage = "idle"
	StageExtracting Stage = "extracting"
	StageCleaning   Stage = "cleaning"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageStored     Stage = "stored"
)

// stageOrder maps each stage to the only stage that may follow it
// on the success path.
var stageOrder = map[Stage]Stage{
	StageIdle:       StageExtracting,
	StageExtracting: StageCleaning,
	StageCleaning:   StageChunking,
	StageChunking:   StageEmbedding,
	StageEmbedding:  StageStored,
	StageStored:     StageIdle,
}

// Next returns the stage that follows s on the success path.
func (s Stage) Next() Stage {
	if next, ok := stageOrder[s]; ok {
		return next
	}
	return StageIdle
}

// CanTransition reports whether moving from s to next is legal.
// Any stage may return to Idle when a job is aborted.
func (s Stage) CanTransition(next Stage) bool {
	if next == StageIdle {
		return true
	}
	return stageOrder[s] == next
}

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}

// AllStages returns the stages in order.
func AllStages() []Stage {
	return []Stage{
		StageIdle,
		StageExtracting,
		StageCleaning,
		StageChunking,
		StageEmbedding,
		StageStored,
	}
}

// ItemKind distinguishes file sources from web sources.
type ItemKind string

// Item kinds.
const (
	ItemFile ItemKind = "file"
	ItemURL  ItemKind = "url"
)

// OutcomeStatus is the result of processing one item.
type OutcomeStatus string

// Outcome statuses.
const (
	// OutcomeOK means the item produced a record.
	OutcomeOK OutcomeStatus = "ok"

	// OutcomeSkipped means the item produced no usable text.
	OutcomeSkipped OutcomeStatus = "skipped"

	// OutcomeExcluded means the item's format is deliberately not ingested.
	OutcomeExcluded OutcomeStatus = "excluded"

	// OutcomeFailed means the item's extraction or fetch failed.
	OutcomeFailed OutcomeStatus = "failed"
)

// ItemOutcome records what happened to a single file or URL.
type ItemOutcome struct {
	// Item is the file path or URL.
	Item string `json:"item"`

	// Kind is file or url.
	Kind ItemKind `json:"kind"`

	// Stage is where the item stopped.
	Stage Stage `json:"stage"`

	// Status is the outcome.
	Status OutcomeStatus `json:"status"`

	// Reason is a human-readable explanation for non-OK outcomes.
	Reason string `json:"reason,omitempty"`

	// Err is the underlying error for failed outcomes.
	Err error `json:"-"`
}

// OK reports whether the item produced a record.
func (o ItemOutcome) OK() bool {
	return o.Status == OutcomeOK
}

// ExtractionBatch is the aggregate result of folder or web extraction.
type ExtractionBatch struct {
	// Records are the successfully extracted sources.
	Records []SourceRecord

	// Outcomes holds one entry per item attempted.
	Outcomes []ItemOutcome
}

// Merge appends another batch's records and outcomes.
func (b *ExtractionBatch) Merge(other ExtractionBatch) {
	b.Records = append(b.Records, other.Records...)
	b.Outcomes = append(b.Outcomes, other.Outcomes...)
}

// BatchReport is the user-visible account of one ingestion job.
type BatchReport struct {
	// JobID identifies the job.
	JobID string `json:"job_id"`

	// StartedAt is when the job began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the job ended, successfully or not.
	FinishedAt time.Time `json:"finished_at"`

	// Stage is the last stage reached. Stored means the job completed.
	Stage Stage `json:"stage"`

	// Records is the number of records that reached the chunking stage.
	Records int `json:"records"`

	// Chunks is the number of chunks produced.
	Chunks int `json:"chunks"`

	// Stored is the number of documents added to the vector store.
	Stored int `json:"stored"`

	// Outcomes holds one entry per item attempted.
	Outcomes []ItemOutcome `json:"outcomes"`
}

// NewBatchReport creates a report for a job starting now.
func NewBatchReport(jobID string) *BatchReport {
	return &BatchReport{
		JobID:     jobID,
		StartedAt: time.Now(),
		Stage:     StageIdle,
	}
}

// SuccessCount returns the number of items that produced a record.
func (r *BatchReport) SuccessCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Skipped returns every item that did not produce a record, in order.
func (r *BatchReport) Skipped() []ItemOutcome {
	var skipped []ItemOutcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			skipped = append(skipped, o)
		}
	}
	return skipped
}

// Completed reports whether the job reached the Stored stage.
func (r *BatchReport) Completed() bool {
	return r.Stage == StageStored
}

// Duration returns how long the job ran.
func (r *BatchReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
