package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	lg, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lg.Close() })
	return lg
}

func TestShouldSkipUnknownUnit(t *testing.T) {
	lg := openTestLedger(t)

	skip, err := lg.ShouldSkip(context.Background(), "doc.pdf", 0, "h1")
	require.NoError(t, err)
	assert.False(t, skip)
}

func TestRecordThenSkip(t *testing.T) {
	lg := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, lg.Record(ctx, "doc.pdf", 3, "h1", StatusIndexed))

	skip, err := lg.ShouldSkip(ctx, "doc.pdf", 3, "h1")
	require.NoError(t, err)
	assert.True(t, skip)

	// A different hash means the content changed.
	skip, err = lg.ShouldSkip(ctx, "doc.pdf", 3, "h2")
	require.NoError(t, err)
	assert.False(t, skip)

	// Other units and sources are unaffected.
	skip, err = lg.ShouldSkip(ctx, "doc.pdf", 4, "h1")
	require.NoError(t, err)
	assert.False(t, skip)

	skip, err = lg.ShouldSkip(ctx, "other.pdf", 3, "h1")
	require.NoError(t, err)
	assert.False(t, skip)
}

func TestFailedStatusIsAlwaysRetried(t *testing.T) {
	lg := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, lg.Record(ctx, "doc.pdf", 0, "h1", StatusFailed))

	skip, err := lg.ShouldSkip(ctx, "doc.pdf", 0, "h1")
	require.NoError(t, err)
	assert.False(t, skip)
}

func TestRecordOverwrites(t *testing.T) {
	lg := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, lg.Record(ctx, "doc.pdf", 0, "h1", StatusFailed))
	require.NoError(t, lg.Record(ctx, "doc.pdf", 0, "h1", StatusIndexed))

	skip, err := lg.ShouldSkip(ctx, "doc.pdf", 0, "h1")
	require.NoError(t, err)
	assert.True(t, skip)
}

func TestForget(t *testing.T) {
	lg := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, lg.Record(ctx, "doc.pdf", 0, "h1", StatusIndexed))
	require.NoError(t, lg.Record(ctx, "doc.pdf", 1, "h2", StatusIndexed))
	require.NoError(t, lg.Record(ctx, "keep.pdf", 0, "h3", StatusIndexed))

	require.NoError(t, lg.Forget(ctx, "doc.pdf"))

	skip, err := lg.ShouldSkip(ctx, "doc.pdf", 0, "h1")
	require.NoError(t, err)
	assert.False(t, skip)

	skip, err = lg.ShouldSkip(ctx, "keep.pdf", 0, "h3")
	require.NoError(t, err)
	assert.True(t, skip)
}
