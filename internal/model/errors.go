package model

import "fmt"

// ErrorKind classifies ingestion pipeline failures for reporting.
type ErrorKind string

const (
	// ErrSegmentation means the external segmenter output could not be
	// consumed at all. Fatal: no partial document is usable.
	ErrSegmentation ErrorKind = "segmentation"

	// ErrEnrichment is a per-unit summarization failure. Recorded, non-fatal.
	ErrEnrichment ErrorKind = "enrichment"

	// ErrUpsert is a per-record embedding or index write failure.
	// Recorded, non-fatal.
	ErrUpsert ErrorKind = "upsert"

	// ErrBackendUnavailable is a transient backend failure that exhausted
	// its retry budget.
	ErrBackendUnavailable ErrorKind = "backend_unavailable"
)

// UnitError is a unit-level ingestion failure. Unit errors never propagate
// past the batch boundary; they are collected into the UpsertReport.
type UnitError struct {
	SequenceIndex int       `json:"sequence_index"`
	Kind          ErrorKind `json:"kind"`
	Message       string    `json:"message"`
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %d: %s: %s", e.SequenceIndex, e.Kind, e.Message)
}

// NewUnitError wraps err as a unit-level failure of the given kind.
func NewUnitError(seq int, kind ErrorKind, err error) *UnitError {
	return &UnitError{SequenceIndex: seq, Kind: kind, Message: err.Error()}
}

// UpsertReport is the single surfaced artifact of an ingestion run.
// A batch of N units where M fail always yields Succeeded == N-M and
// Failed == M; the run itself does not error for unit-level failures.
type UpsertReport struct {
	// RunID identifies the ingestion run that produced this report.
	RunID string `json:"run_id"`

	// SourceName is the logical document the run ingested.
	SourceName string `json:"source_name"`

	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// Skipped counts units the ledger recognized as already indexed with
	// unchanged content, so no embedding or upsert call was made.
	Skipped int `json:"skipped"`

	// Failures lists every unit-level error, ordered by sequence index.
	Failures []UnitError `json:"failures,omitempty"`
}

// Total returns the number of units the run attempted or skipped.
func (r *UpsertReport) Total() int {
	return r.Succeeded + r.Failed + r.Skipped
}
