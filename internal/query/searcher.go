package query

import (
	"context"
	"fmt"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/docvec/internal/model"
	"github.com/kart-io/docvec/internal/store"
	"github.com/kart-io/docvec/pkg/llm"
)

// Config controls the searcher.
type Config struct {
	// Collection is the vector collection to query.
	Collection string
}

// OpenStoreFunc opens the vector store connection. It is called at most
// once per Searcher.
type OpenStoreFunc func(ctx context.Context) (store.VectorStore, error)

// Searcher serves similarity queries. It is stateless apart from the shared
// store handle, which is initialized lazily on first use and then reused by
// every caller; concurrent Search calls are safe.
type Searcher struct {
	openStore OpenStoreFunc
	embedder  llm.EmbeddingProvider
	config    *Config

	once    sync.Once
	store   store.VectorStore
	openErr error
}

// NewSearcher creates a Searcher. The store connection is not opened until
// the first query needs it.
func NewSearcher(openStore OpenStoreFunc, embedder llm.EmbeddingProvider, config *Config) *Searcher {
	return &Searcher{
		openStore: openStore,
		embedder:  embedder,
		config:    config,
	}
}

// NewSearcherWithStore creates a Searcher over an already-open store handle.
func NewSearcherWithStore(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, config *Config) *Searcher {
	return NewSearcher(func(context.Context) (store.VectorStore, error) {
		return vectorStore, nil
	}, embedder, config)
}

func (s *Searcher) handle(ctx context.Context) (store.VectorStore, error) {
	s.once.Do(func() {
		s.store, s.openErr = s.openStore(ctx)
	})
	if s.openErr != nil {
		return nil, fmt.Errorf("vector store unavailable: %w", s.openErr)
	}
	return s.store, nil
}

// Search embeds the query text, runs a similarity search and normalizes the
// raw results. At most k results are returned, ordered by descending
// relevance; results whose payload resolves to no text are dropped.
//
// A backend failure returns a single error and no results, never a partial
// or garbled result list.
func (s *Searcher) Search(ctx context.Context, queryText string, k int) ([]*model.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	vectorStore, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	embedding, err := s.embedder.EmbedSingle(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	docs, err := vectorStore.Search(ctx, s.config.Collection, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*model.SearchResult, 0, len(docs))
	for _, doc := range docs {
		result, ok := Normalize(doc)
		if !ok {
			logger.Warnw("dropping result with no resolvable text",
				"collection", s.config.Collection,
			)
			continue
		}
		results = append(results, result)
	}

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Stats returns the number of indexed vectors in the collection.
func (s *Searcher) Stats(ctx context.Context) (int64, error) {
	vectorStore, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}
	return vectorStore.Stats(ctx, s.config.Collection)
}

// EstimatedUnits estimates the number of source units behind the collection.
func (s *Searcher) EstimatedUnits(ctx context.Context) (int64, error) {
	vectorStore, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}
	return vectorStore.EstimatedUnits(ctx, s.config.Collection)
}

// Close releases the store handle if it was opened.
func (s *Searcher) Close(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Close(ctx)
}
