// Package window builds bounded context windows over a frozen ContentUnit
// sequence.
package window

import (
	"github.com/kart-io/docvec/internal/model"
)

// Windower looks up immediate neighbors for enrichable units. It indexes the
// sequence once at construction; the unit slice must be fully built and
// frozen before any concurrent enrichment reads through a Windower.
type Windower struct {
	bySequence map[int]*model.ContentUnit
}

// New creates a Windower over the frozen unit sequence.
func New(units []*model.ContentUnit) *Windower {
	bySequence := make(map[int]*model.ContentUnit, len(units))
	for _, u := range units {
		bySequence[u.SequenceIndex] = u
	}
	return &Windower{bySequence: bySequence}
}

// Window returns the context window for center.
//
// Neighbors are resolved by original sequence index, not by position in the
// filtered slice: a neighbor the adapter dropped had no text to contribute,
// so the missing side degrades to an empty string exactly as a document
// boundary does. No wraparound, no padding token; the summarization prompt
// treats empty context as "no additional context".
func (w *Windower) Window(center *model.ContentUnit) *model.ContextWindow {
	return &model.ContextWindow{
		Center:        center,
		PrecedingText: w.neighborText(center.SequenceIndex - 1),
		FollowingText: w.neighborText(center.SequenceIndex + 1),
	}
}

func (w *Windower) neighborText(seq int) string {
	u, ok := w.bySequence[seq]
	if !ok {
		return ""
	}
	return u.Text
}
