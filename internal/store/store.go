// Package store defines the vector store abstraction the ingestion and
// query paths share, and its Milvus implementation.
package store

import (
	"context"

	"github.com/kart-io/docvec/internal/model"
)

// CollectionConfig describes the vector collection.
type CollectionConfig struct {
	Name        string
	Description string
	Dimension   int
}

// IndexedRecord pairs an enrichment record with its embedding for upsert.
type IndexedRecord struct {
	// Key is the idempotency key, stored as the collection primary key.
	Key       string
	Embedding []float32
	Record    *model.EnrichmentRecord
}

// Document is one raw retrieval result as handed to the query normalizer.
// Content usually holds the representative text directly, but client
// libraries have historically also returned it as a serialized mapping;
// resolving that is the normalizer's job, not the store's.
type Document struct {
	Content  string
	Metadata map[string]any
	Score    float32
}

// VectorStore is the upsert+query boundary to the external vector index.
type VectorStore interface {
	// EnsureCollection creates and loads the collection if needed.
	EnsureCollection(ctx context.Context, config *CollectionConfig) error

	// Upsert writes records, overwriting any record with the same key.
	Upsert(ctx context.Context, collection string, records []*IndexedRecord) error

	// Search returns raw results ordered by descending backend relevance.
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*Document, error)

	// Stats returns the number of indexed vectors.
	Stats(ctx context.Context, collection string) (int64, error)

	// EstimatedUnits estimates the source unit count from the highest
	// sequence index seen in the collection. Returns 0 when empty.
	EstimatedUnits(ctx context.Context, collection string) (int64, error)

	// Close releases the backend connection.
	Close(ctx context.Context) error
}
