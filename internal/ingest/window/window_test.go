package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docvec/internal/model"
)

func textUnit(seq int, text string) *model.ContentUnit {
	return &model.ContentUnit{Kind: model.KindText, Text: text, SequenceIndex: seq}
}

func TestWindowMiddleUnit(t *testing.T) {
	units := []*model.ContentUnit{
		textUnit(0, "alpha"),
		textUnit(1, "beta"),
		textUnit(2, "gamma"),
	}
	w := New(units)

	win := w.Window(units[1])
	assert.Equal(t, "alpha", win.PrecedingText)
	assert.Equal(t, "gamma", win.FollowingText)
	assert.Equal(t, "alpha\n\nbeta\n\ngamma", win.Prompt())
}

func TestWindowBoundaries(t *testing.T) {
	units := []*model.ContentUnit{
		textUnit(0, "first"),
		textUnit(1, "middle"),
		textUnit(2, "last"),
	}
	w := New(units)

	first := w.Window(units[0])
	assert.Equal(t, "", first.PrecedingText)
	assert.Equal(t, "middle", first.FollowingText)

	last := w.Window(units[2])
	assert.Equal(t, "first", last.PrecedingText)
	assert.Equal(t, "", last.FollowingText)
}

func TestWindowDroppedNeighbor(t *testing.T) {
	// Sequence 0,1,3: the adapter dropped element 2 (no text). Unit 1's
	// following side and unit 3's preceding side both degrade to empty,
	// exactly like a document boundary.
	units := []*model.ContentUnit{
		textUnit(0, "a"),
		textUnit(1, "b"),
		textUnit(3, "d"),
	}
	w := New(units)

	win := w.Window(units[1])
	assert.Equal(t, "a", win.PrecedingText)
	assert.Equal(t, "", win.FollowingText)

	win = w.Window(units[2])
	assert.Equal(t, "", win.PrecedingText)
	assert.Equal(t, "d", win.FollowingText)
}

func TestWindowSingleUnit(t *testing.T) {
	units := []*model.ContentUnit{textUnit(0, "only")}
	w := New(units)

	win := w.Window(units[0])
	require.NotNil(t, win)
	assert.Equal(t, "\n\nonly\n\n", win.Prompt())
}
