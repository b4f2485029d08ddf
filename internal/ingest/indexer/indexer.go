// Package indexer persists enrichment records into the vector index.
//
// For every record the indexer makes exactly one embedding call, on the
// representative text only, then one keyed upsert. Relevance is driven by
// the distilled representation, never by the raw excerpt: that trades recall
// of verbatim phrase matches for recall of conceptual matches.
package indexer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/docvec/internal/ingest/ledger"
	"github.com/kart-io/docvec/internal/model"
	"github.com/kart-io/docvec/internal/pkg/textutil"
	"github.com/kart-io/docvec/internal/store"
	"github.com/kart-io/docvec/pkg/infra/pool"
	"github.com/kart-io/docvec/pkg/llm"
)

// Config controls the indexer.
type Config struct {
	// Collection is the vector collection name.
	Collection string

	// EmbeddingDim is the embedding vector dimension.
	EmbeddingDim int

	// Workers caps concurrent embed+upsert calls in batch mode.
	Workers int

	// Retry bounds retries of transient backend failures.
	Retry *RetryConfig
}

// Indexer writes enrichment records into the vector store.
type Indexer struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	ledger        *ledger.Ledger
	config        *Config
}

// New creates an Indexer. The ledger may be nil, in which case every record
// is embedded and upserted unconditionally.
func New(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, lg *ledger.Ledger, config *Config) *Indexer {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.Retry == nil {
		config.Retry = DefaultRetryConfig()
	}
	return &Indexer{
		store:         vectorStore,
		embedProvider: embedProvider,
		ledger:        lg,
		config:        config,
	}
}

// EnsureCollection prepares the target collection.
func (i *Indexer) EnsureCollection(ctx context.Context) error {
	return i.store.EnsureCollection(ctx, &store.CollectionConfig{
		Name:        i.config.Collection,
		Description: "docvec enrichment records",
		Dimension:   i.config.EmbeddingDim,
	})
}

// IndexRecord embeds and upserts a single record. The embed-then-upsert pair
// is the atomic unit of work: on any failure nothing is half-written, the
// previous version of the record (if any) stays intact.
//
// Returns skipped == true when the ledger shows the record already indexed
// with unchanged content, in which case no embedding call is made.
func (i *Indexer) IndexRecord(ctx context.Context, rec *model.EnrichmentRecord) (skipped bool, err error) {
	contentHash := textutil.HashString(rec.RepresentativeText)

	if i.ledger != nil {
		skip, lerr := i.ledger.ShouldSkip(ctx, rec.SourceName, rec.SequenceIndex, contentHash)
		if lerr != nil {
			logger.Warnw("ledger lookup failed, indexing anyway",
				"sequence_index", rec.SequenceIndex,
				"error", lerr.Error(),
			)
		} else if skip {
			return true, nil
		}
	}

	var embedding []float32
	err = retry(ctx, i.config.Retry, func() error {
		var rerr error
		embedding, rerr = i.embedProvider.EmbedSingle(ctx, rec.RepresentativeText)
		return rerr
	})
	if err != nil {
		i.recordStatus(ctx, rec, contentHash, ledger.StatusFailed)
		return false, fmt.Errorf("embedding failed: %w", err)
	}

	err = retry(ctx, i.config.Retry, func() error {
		return i.store.Upsert(ctx, i.config.Collection, []*store.IndexedRecord{{
			Key:       rec.Key(),
			Embedding: embedding,
			Record:    rec,
		}})
	})
	if err != nil {
		i.recordStatus(ctx, rec, contentHash, ledger.StatusFailed)
		return false, fmt.Errorf("upsert failed: %w", err)
	}

	i.recordStatus(ctx, rec, contentHash, ledger.StatusIndexed)
	return false, nil
}

// Upsert indexes a batch of records over a bounded worker pool and reports
// per-record outcomes. A record's failure never aborts the rest of the
// batch; the report is the single surfaced artifact.
func (i *Indexer) Upsert(ctx context.Context, records []*model.EnrichmentRecord) (*model.UpsertReport, error) {
	report := &model.UpsertReport{}
	if len(records) == 0 {
		return report, nil
	}
	report.SourceName = records[0].SourceName

	workers, err := pool.New(pool.DefaultConfig(i.config.Workers))
	if err != nil {
		return nil, err
	}
	defer workers.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, rec := range records {
		rec := rec
		wg.Add(1)
		if err := workers.Submit(func() {
			defer wg.Done()
			skipped, ierr := i.IndexRecord(ctx, rec)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case ierr != nil:
				report.Failed++
				report.Failures = append(report.Failures,
					*model.NewUnitError(rec.SequenceIndex, model.ErrUpsert, ierr))
			case skipped:
				report.Skipped++
			default:
				report.Succeeded++
			}
		}); err != nil {
			wg.Done()
			mu.Lock()
			report.Failed++
			report.Failures = append(report.Failures,
				*model.NewUnitError(rec.SequenceIndex, model.ErrUpsert, err))
			mu.Unlock()
		}
	}

	wg.Wait()

	sort.Slice(report.Failures, func(a, b int) bool {
		return report.Failures[a].SequenceIndex < report.Failures[b].SequenceIndex
	})
	return report, nil
}

func (i *Indexer) recordStatus(ctx context.Context, rec *model.EnrichmentRecord, hash, status string) {
	if i.ledger == nil {
		return
	}
	if err := i.ledger.Record(ctx, rec.SourceName, rec.SequenceIndex, hash, status); err != nil {
		logger.Warnw("ledger record failed",
			"sequence_index", rec.SequenceIndex,
			"error", err.Error(),
		)
	}
}
