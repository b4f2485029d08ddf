package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/docvec/internal/model"
	"github.com/kart-io/docvec/pkg/component/milvus"
)

// Collection field names. The payload schema mirrors what the indexer
// writes: representative text plus full provenance.
const (
	fieldContent      = "content"
	fieldSource       = "source"
	fieldOriginalText = "original_text"
	fieldSequenceID   = "sequence_id"
	fieldPageNumber   = "page_number"
	fieldElementType  = "element_type"
)

var outputFields = []string{
	fieldContent, fieldSource, fieldOriginalText,
	fieldSequenceID, fieldPageNumber, fieldElementType,
}

// MilvusStore implements VectorStore on top of the Milvus component.
type MilvusStore struct {
	client *milvus.Client
}

// NewMilvusStore creates a Milvus-backed vector store.
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// EnsureCollection creates and loads the collection if needed.
func (s *MilvusStore) EnsureCollection(ctx context.Context, config *CollectionConfig) error {
	schema := &milvus.CollectionSchema{
		Name:        config.Name,
		Description: config.Description,
		Dimension:   config.Dimension,
		KeyMaxLen:   256,
		MetaFields: []milvus.MetaField{
			{Name: fieldContent, DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: fieldSource, DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: fieldOriginalText, DataType: entity.FieldTypeVarChar, MaxLen: 1024},
			{Name: fieldSequenceID, DataType: entity.FieldTypeInt64},
			{Name: fieldPageNumber, DataType: entity.FieldTypeInt64},
			{Name: fieldElementType, DataType: entity.FieldTypeVarChar, MaxLen: 32},
		},
	}
	return s.client.EnsureCollection(ctx, schema)
}

// Upsert writes records keyed by their idempotency key. A record whose key
// already exists in the collection is overwritten, never duplicated.
func (s *MilvusStore) Upsert(ctx context.Context, collection string, records []*IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}

	data := &milvus.UpsertData{
		Keys:       make([]string, len(records)),
		Embeddings: make([][]float32, len(records)),
		Metadata: map[string][]any{
			fieldContent:      make([]any, len(records)),
			fieldSource:       make([]any, len(records)),
			fieldOriginalText: make([]any, len(records)),
			fieldSequenceID:   make([]any, len(records)),
			fieldPageNumber:   make([]any, len(records)),
			fieldElementType:  make([]any, len(records)),
		},
	}

	for i, rec := range records {
		data.Keys[i] = rec.Key
		data.Embeddings[i] = rec.Embedding
		data.Metadata[fieldContent][i] = rec.Record.RepresentativeText
		data.Metadata[fieldSource][i] = rec.Record.SourceName
		data.Metadata[fieldOriginalText][i] = rec.Record.SourceExcerpt
		data.Metadata[fieldSequenceID][i] = int64(rec.Record.SequenceIndex)
		data.Metadata[fieldPageNumber][i] = int64(rec.Record.PageNumber)
		data.Metadata[fieldElementType][i] = string(rec.Record.ElementKind)
	}

	if err := s.client.Upsert(ctx, collection, data); err != nil {
		return fmt.Errorf("failed to upsert into milvus: %w", err)
	}
	return nil
}

// Search performs a vector similarity search.
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*Document, error) {
	results, err := s.client.Search(ctx, collection, embedding, topK, outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	docs := make([]*Document, len(results))
	for i, r := range results {
		content, _ := r.Metadata[fieldContent].(string)

		metadata := map[string]any{
			model.MetaSource:       r.Metadata[fieldSource],
			model.MetaOriginalText: r.Metadata[fieldOriginalText],
			model.MetaSequenceID:   r.Metadata[fieldSequenceID],
			model.MetaPageNumber:   r.Metadata[fieldPageNumber],
			model.MetaElementType:  r.Metadata[fieldElementType],
		}

		docs[i] = &Document{
			Content:  content,
			Metadata: metadata,
			Score:    r.Score,
		}
	}

	return docs, nil
}

// Stats returns the number of indexed vectors.
func (s *MilvusStore) Stats(ctx context.Context, collection string) (int64, error) {
	return s.client.GetCollectionStats(ctx, collection)
}

// estimateSampleLimit bounds the sequence-id sample used for unit count
// estimation.
const estimateSampleLimit = 16384

// EstimatedUnits estimates the unit count as the highest sequence index plus
// one. Sequence indices count from zero over the original element order, so
// the maximum bounds the source length even when units were skipped.
func (s *MilvusStore) EstimatedUnits(ctx context.Context, collection string) (int64, error) {
	max, found, err := s.client.MaxInt64Field(ctx, collection, fieldSequenceID, estimateSampleLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate unit count: %w", err)
	}
	if !found {
		return 0, nil
	}
	return max + 1, nil
}

// Close closes the Milvus connection.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

var _ VectorStore = (*MilvusStore)(nil)
