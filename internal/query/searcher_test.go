package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docvec/internal/store"
)

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, f.err
}

func (f *fakeEmbedder) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 2, 3}, nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

type fakeStore struct {
	docs      []*store.Document
	searchErr error
	lastTopK  int
	count     int64
	maxSeq    int64
	closed    bool
}

func (f *fakeStore) EnsureCollection(context.Context, *store.CollectionConfig) error { return nil }

func (f *fakeStore) Upsert(context.Context, string, []*store.IndexedRecord) error { return nil }

func (f *fakeStore) Search(_ context.Context, _ string, _ []float32, topK int) ([]*store.Document, error) {
	f.lastTopK = topK
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.docs, nil
}

func (f *fakeStore) Stats(context.Context, string) (int64, error) { return f.count, nil }

func (f *fakeStore) EstimatedUnits(context.Context, string) (int64, error) { return f.maxSeq + 1, nil }

func (f *fakeStore) Close(context.Context) error {
	f.closed = true
	return nil
}

func newTestSearcher(fs *fakeStore, fe *fakeEmbedder) *Searcher {
	return NewSearcherWithStore(fs, fe, &Config{Collection: "test"})
}

func TestSearchReturnsNormalizedResults(t *testing.T) {
	fs := &fakeStore{docs: []*store.Document{
		{Content: "first", Score: 0.9},
		{Content: `{"page_content": "second", "metadata": {"source": "s"}}`, Score: 0.5},
	}}
	s := newTestSearcher(fs, &fakeEmbedder{})

	results, err := s.Search(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "first", results[0].Content)
	assert.Equal(t, "second", results[1].Content)
	assert.Equal(t, "s", results[1].Metadata["source"])
	assert.Equal(t, 5, fs.lastTopK)
}

func TestSearchDropsUnresolvableResults(t *testing.T) {
	fs := &fakeStore{docs: []*store.Document{
		{Content: "kept"},
		{Content: ""},
	}}
	s := newTestSearcher(fs, &fakeEmbedder{})

	results, err := s.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kept", results[0].Content)
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	s := newTestSearcher(&fakeStore{}, &fakeEmbedder{})

	_, err := s.Search(context.Background(), "q", 0)
	require.Error(t, err)
}

func TestSearchBackendErrorReturnsNoResults(t *testing.T) {
	fs := &fakeStore{searchErr: fmt.Errorf("backend down")}
	s := newTestSearcher(fs, &fakeEmbedder{})

	results, err := s.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Nil(t, results)
}

func TestSearchEmbedErrorReturnsNoResults(t *testing.T) {
	s := newTestSearcher(&fakeStore{}, &fakeEmbedder{err: fmt.Errorf("embed down")})

	_, err := s.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed")
}

func TestSearcherLazyOpenHappensOnce(t *testing.T) {
	opens := 0
	fs := &fakeStore{docs: []*store.Document{{Content: "x"}}}
	s := NewSearcher(func(context.Context) (store.VectorStore, error) {
		opens++
		return fs, nil
	}, &fakeEmbedder{}, &Config{Collection: "test"})

	for i := 0; i < 3; i++ {
		_, err := s.Search(context.Background(), "q", 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, opens)
}

func TestSearcherOpenFailureSurfacesOnEveryCall(t *testing.T) {
	s := NewSearcher(func(context.Context) (store.VectorStore, error) {
		return nil, fmt.Errorf("no route to host")
	}, &fakeEmbedder{}, &Config{Collection: "test"})

	_, err := s.Search(context.Background(), "q", 1)
	require.Error(t, err)

	_, err = s.Stats(context.Background())
	require.Error(t, err)
}

func TestStats(t *testing.T) {
	fs := &fakeStore{count: 42, maxSeq: 99}
	s := newTestSearcher(fs, &fakeEmbedder{})

	count, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)

	estimated, err := s.EstimatedUnits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), estimated)
}
