package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docvec/internal/ingest/enrich"
	"github.com/kart-io/docvec/internal/ingest/indexer"
	"github.com/kart-io/docvec/internal/ingest/segment"
	"github.com/kart-io/docvec/internal/model"
	"github.com/kart-io/docvec/internal/store"
	"github.com/kart-io/docvec/pkg/llm"
)

// fakeChat fails for any prompt containing one of the poison markers and
// otherwise echoes a canned summary.
type fakeChat struct {
	poison []string
}

func (f *fakeChat) Chat(_ context.Context, _ []llm.Message) (string, error) {
	return "summary", nil
}

func (f *fakeChat) Generate(_ context.Context, prompt, _ string) (string, error) {
	for _, p := range f.poison {
		if strings.Contains(prompt, p) {
			return "", fmt.Errorf("model refused")
		}
	}
	return "summary", nil
}

func (f *fakeChat) Name() string { return "fake" }

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

type fakeStore struct {
	mu       sync.Mutex
	upserted map[string]*model.EnrichmentRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserted: map[string]*model.EnrichmentRecord{}}
}

func (f *fakeStore) EnsureCollection(context.Context, *store.CollectionConfig) error { return nil }

func (f *fakeStore) Upsert(_ context.Context, _ string, records []*store.IndexedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range records {
		f.upserted[rec.Key] = rec.Record
	}
	return nil
}

func (f *fakeStore) Search(context.Context, string, []float32, int) ([]*store.Document, error) {
	return nil, nil
}

func (f *fakeStore) Stats(context.Context, string) (int64, error) { return 0, nil }

func (f *fakeStore) EstimatedUnits(context.Context, string) (int64, error) { return 0, nil }

func (f *fakeStore) Close(context.Context) error { return nil }

func newTestPipeline(fs *fakeStore, chat *fakeChat, dryRun bool) *Pipeline {
	enricher := enrich.New(chat, &enrich.Config{SourceName: "doc.pdf"})
	idx := indexer.New(fs, &fakeEmbedder{}, nil, &indexer.Config{
		Collection: "c",
		Retry:      &indexer.RetryConfig{MaxAttempts: 1, InitialDelay: 1, MaxDelay: 1, Multiplier: 1},
	})
	return New(segment.NewAdapter(nil), enricher, idx, &Config{
		SourceName: "doc.pdf",
		Workers:    2,
		DryRun:     dryRun,
	})
}

func textUnits(texts ...string) []*model.ContentUnit {
	units := make([]*model.ContentUnit, len(texts))
	for i, text := range texts {
		units[i] = &model.ContentUnit{Kind: model.KindText, Text: text, SequenceIndex: i}
	}
	return units
}

func TestRunUnitsAllSucceed(t *testing.T) {
	fs := newFakeStore()
	p := newTestPipeline(fs, &fakeChat{}, false)

	report, err := p.RunUnits(context.Background(), textUnits("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "doc.pdf", report.SourceName)
	assert.Len(t, fs.upserted, 3)
	assert.Contains(t, fs.upserted, "doc.pdf:0")
	assert.Contains(t, fs.upserted, "doc.pdf:2")
}

func TestRunUnitsPartialEnrichmentFailure(t *testing.T) {
	fs := newFakeStore()
	p := newTestPipeline(fs, &fakeChat{poison: []string{"bravo", "delta"}}, false)

	report, err := p.RunUnits(context.Background(), textUnits("alpha", "bravo", "charlie", "delta", "echo"))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 5, report.Total())

	require.Len(t, report.Failures, 2)
	assert.Equal(t, 1, report.Failures[0].SequenceIndex)
	assert.Equal(t, model.ErrEnrichment, report.Failures[0].Kind)
	assert.Equal(t, 3, report.Failures[1].SequenceIndex)

	// The failed units never reach the index.
	assert.Len(t, fs.upserted, 3)
	assert.NotContains(t, fs.upserted, "doc.pdf:1")
	assert.NotContains(t, fs.upserted, "doc.pdf:3")
}

func TestRunUnitsSkipsNonEnrichable(t *testing.T) {
	fs := newFakeStore()
	p := newTestPipeline(fs, &fakeChat{}, false)

	units := []*model.ContentUnit{
		{Kind: model.KindText, Text: "real text", SequenceIndex: 0},
		{Kind: model.KindTable, Text: "a | b", SequenceIndex: 1},
		{Kind: model.KindText, Text: "   ", SequenceIndex: 2},
	}

	report, err := p.RunUnits(context.Background(), units)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Len(t, fs.upserted, 1)
	assert.Contains(t, fs.upserted, "doc.pdf:0")
}

func TestRunUnitsDryRun(t *testing.T) {
	fs := newFakeStore()
	p := newTestPipeline(fs, &fakeChat{}, true)

	report, err := p.RunUnits(context.Background(), textUnits("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 0, report.Succeeded)
	assert.Empty(t, fs.upserted)
}

func TestRunSegmentationFailureIsFatal(t *testing.T) {
	p := newTestPipeline(newFakeStore(), &fakeChat{}, false)

	_, err := p.Run(context.Background(), strings.NewReader(`not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segmentation failed")
}

func TestRunEndToEnd(t *testing.T) {
	fs := newFakeStore()
	p := newTestPipeline(fs, &fakeChat{}, false)

	input := `[
		{"type": "Title", "text": "Intro", "metadata": {"page_number": 1}},
		{"type": "Image"},
		{"type": "NarrativeText", "text": "Body.", "metadata": {"page_number": 1}}
	]`

	report, err := p.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Contains(t, fs.upserted, "doc.pdf:0")
	assert.Contains(t, fs.upserted, "doc.pdf:2")

	rec := fs.upserted["doc.pdf:2"]
	assert.Equal(t, "summary", rec.RepresentativeText)
	assert.Equal(t, "Body.", rec.SourceExcerpt)
	assert.Equal(t, 1, rec.PageNumber)
}

func TestRunUnitsCancelledContext(t *testing.T) {
	fs := newFakeStore()
	p := newTestPipeline(fs, &fakeChat{}, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.RunUnits(ctx, textUnits("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Failed)
	for _, f := range report.Failures {
		assert.Equal(t, model.ErrBackendUnavailable, f.Kind)
	}
	assert.Empty(t, fs.upserted)
}
