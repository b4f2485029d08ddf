// Package model provides data models shared by the docvec ingestion and
// query paths.
package model

import (
	"strconv"
	"strings"
)

// UnitKind classifies a segmented content unit. The external segmenter emits
// loosely typed elements; the segment adapter maps each of them onto this
// closed variant exactly once, and everything downstream switches on it
// instead of inspecting raw element types.
type UnitKind string

const (
	KindText  UnitKind = "text"
	KindTable UnitKind = "table"
	KindImage UnitKind = "image"
)

// ContentUnit is one segmented block of a source document. Units are created
// once per ingestion run by the segment adapter and are immutable afterwards.
type ContentUnit struct {
	// Kind is the closed content variant.
	Kind UnitKind `json:"kind"`

	// Text is the unit's text. Empty for pure-image units.
	Text string `json:"text,omitempty"`

	// PageNumber is the 1-based page the unit was extracted from.
	// Zero means the segmenter could not localize the unit.
	PageNumber int `json:"page_number,omitempty"`

	// SequenceIndex is the unit's zero-based position in the segmenter's
	// original output. It is assigned once and never reassigned, so skipped
	// elements leave gaps and provenance stays exact.
	SequenceIndex int `json:"sequence_index"`
}

// HasText reports whether the unit carries non-whitespace text.
func (u *ContentUnit) HasText() bool {
	return strings.TrimSpace(u.Text) != ""
}

// Enrichable reports whether the unit is a candidate for enrichment:
// a text unit with non-whitespace content.
func (u *ContentUnit) Enrichable() bool {
	return u.Kind == KindText && u.HasText()
}

// ContextWindow is an enrichable unit plus the raw text of its immediate
// neighbors. Missing or textless neighbors contribute an empty string; the
// summarization prompt treats empty context as "no additional context".
type ContextWindow struct {
	Center        *ContentUnit
	PrecedingText string
	FollowingText string
}

// Prompt returns the context prompt sent to the summarization service:
// preceding, center and following text joined by blank lines.
func (w *ContextWindow) Prompt() string {
	return w.PrecedingText + "\n\n" + w.Center.Text + "\n\n" + w.FollowingText
}

// EnrichmentRecord is the unit persisted to the vector index. Exactly one
// record may exist in the index per (SourceName, SequenceIndex); re-ingestion
// of the same key replaces the previous record.
type EnrichmentRecord struct {
	// RepresentativeText is the summarization output. It is the only field
	// that gets embedded and is what queries match against.
	RepresentativeText string `json:"representative_text"`

	// SourceExcerpt is a bounded prefix of the original unit text, kept for
	// display and audit. Never embedded.
	SourceExcerpt string `json:"source_excerpt"`

	// SourceName is the logical document identifier.
	SourceName string `json:"source_name"`

	SequenceIndex int      `json:"sequence_index"`
	PageNumber    int      `json:"page_number,omitempty"`
	ElementKind   UnitKind `json:"element_kind"`
}

// Key returns the record's idempotency key, used as the vector collection
// primary key so a re-upsert overwrites rather than duplicates.
func (r *EnrichmentRecord) Key() string {
	return RecordKey(r.SourceName, r.SequenceIndex)
}

// RecordKey builds the idempotency key for a (source, sequence) pair.
func RecordKey(sourceName string, sequenceIndex int) string {
	return sourceName + ":" + strconv.Itoa(sequenceIndex)
}

// SearchResult is the canonical record produced by the query normalizer.
// Content is never empty: records whose payload cannot be resolved to any
// text are dropped rather than returned hollow.
type SearchResult struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float32        `json:"score,omitempty"`
}

// Metadata keys written by the indexer and surfaced on the read path.
const (
	MetaSource       = "source"
	MetaOriginalText = "original_text"
	MetaSequenceID   = "sequence_id"
	MetaPageNumber   = "page_number"
	MetaElementType  = "element_type"
)
