// Package enrich turns context windows into search-optimized enrichment
// records via the external summarization service.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/docvec/internal/model"
	"github.com/kart-io/docvec/internal/pkg/textutil"
	"github.com/kart-io/docvec/pkg/llm"
)

// summarizeInstruction asks the model for a retrieval-oriented distillation
// rather than a display summary, and pins domain vocabulary so that the
// representative text still matches terminology-heavy queries.
const summarizeInstruction = "Summarize the central idea of the following text for search purposes. " +
	"Preserve important domain-specific terminology and definitions.\n\n"

// ExcerptBudget is the character budget for the audited source excerpt.
// Truncation, not summarization: the original wording must stay auditable
// even when the representative text drifts from it.
const ExcerptBudget = 300

// Config controls the enricher.
type Config struct {
	// SourceName is the logical identifier of the document being ingested.
	SourceName string

	// ExcerptBudget overrides the default source excerpt budget when > 0.
	ExcerptBudget int
}

// Enricher produces EnrichmentRecords from context windows.
type Enricher struct {
	chatProvider llm.ChatProvider
	config       *Config
}

// New creates an Enricher.
func New(chatProvider llm.ChatProvider, config *Config) *Enricher {
	if config.ExcerptBudget <= 0 {
		config.ExcerptBudget = ExcerptBudget
	}
	return &Enricher{
		chatProvider: chatProvider,
		config:       config,
	}
}

// Enrich summarizes one window and builds its record. A failure concerns
// only this unit: the caller records it and continues with the rest of the
// batch. Enrich has no side effects beyond the outbound service call.
func (e *Enricher) Enrich(ctx context.Context, w *model.ContextWindow) (*model.EnrichmentRecord, error) {
	prompt := summarizeInstruction + w.Prompt()

	response, err := e.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		return nil, fmt.Errorf("summarization request failed: %w", err)
	}

	representative := strings.TrimSpace(response)
	if representative == "" {
		return nil, fmt.Errorf("summarization service returned empty text")
	}

	center := w.Center
	return &model.EnrichmentRecord{
		RepresentativeText: representative,
		SourceExcerpt:      textutil.Truncate(center.Text, e.config.ExcerptBudget),
		SourceName:         e.config.SourceName,
		SequenceIndex:      center.SequenceIndex,
		PageNumber:         center.PageNumber,
		ElementKind:        center.Kind,
	}, nil
}
