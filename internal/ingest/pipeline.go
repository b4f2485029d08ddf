// Package ingest orchestrates the document ingestion pipeline: segmenter
// output is adapted into content units, each unit is framed with its
// neighbors, summarized into a representative text, embedded and upserted
// into the vector index.
package ingest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/kart-io/docvec/internal/ingest/enrich"
	"github.com/kart-io/docvec/internal/ingest/indexer"
	"github.com/kart-io/docvec/internal/ingest/segment"
	"github.com/kart-io/docvec/internal/ingest/window"
	"github.com/kart-io/docvec/internal/model"
	"github.com/kart-io/docvec/pkg/infra/pool"
)

// Config controls a pipeline run.
type Config struct {
	// SourceName is the logical identifier of the document being ingested.
	SourceName string

	// Workers caps concurrent enrich+index tasks.
	Workers int

	// DryRun segments and windows but makes no outbound calls.
	DryRun bool
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	adapter  *segment.Adapter
	enricher *enrich.Enricher
	indexer  *indexer.Indexer
	config   *Config
}

// New creates a Pipeline.
func New(adapter *segment.Adapter, enricher *enrich.Enricher, idx *indexer.Indexer, config *Config) *Pipeline {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	return &Pipeline{
		adapter:  adapter,
		enricher: enricher,
		indexer:  idx,
		config:   config,
	}
}

// Run ingests segmenter output read from r and returns the run report.
//
// A segmentation failure is fatal and returns an error. Everything after
// segmentation is per-unit: an enrichment or upsert failure is recorded in
// the report and the remaining units proceed.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*model.UpsertReport, error) {
	units, err := p.adapter.Load(r)
	if err != nil {
		return nil, fmt.Errorf("segmentation failed: %w", err)
	}

	return p.RunUnits(ctx, units)
}

// Adapt exposes the pipeline's configured segment adapter, so callers that
// receive pre-parsed elements share the same page-offset handling.
func (p *Pipeline) Adapt(elements []segment.Element) []*model.ContentUnit {
	return p.adapter.Adapt(elements)
}

// RunUnits ingests an already-adapted unit sequence. The sequence is frozen
// before fan-out: workers read neighbor text from it but never mutate it, so
// every window is computed against the same immutable snapshot.
func (p *Pipeline) RunUnits(ctx context.Context, units []*model.ContentUnit) (*model.UpsertReport, error) {
	runID := newRunID()
	report := &model.UpsertReport{
		RunID:      runID,
		SourceName: p.config.SourceName,
	}

	windower := window.New(units)

	var enrichable []*model.ContentUnit
	for _, u := range units {
		if u.Enrichable() {
			enrichable = append(enrichable, u)
		}
	}

	logger.Infow("starting ingestion run",
		"run_id", runID,
		"source", p.config.SourceName,
		"units", len(units),
		"enrichable", len(enrichable),
		"workers", p.config.Workers,
		"dry_run", p.config.DryRun,
	)

	if p.config.DryRun {
		report.Skipped = len(enrichable)
		return report, nil
	}

	if err := p.indexer.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("collection setup failed: %w", err)
	}

	workers, err := pool.New(pool.DefaultConfig(p.config.Workers))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer workers.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	record := func(seq int, kind model.ErrorKind, err error, skipped bool) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			report.Failed++
			report.Failures = append(report.Failures, *model.NewUnitError(seq, kind, err))
		case skipped:
			report.Skipped++
		default:
			report.Succeeded++
		}
	}

	for _, unit := range enrichable {
		unit := unit
		wg.Add(1)
		submitErr := workers.Submit(func() {
			defer wg.Done()

			if err := ctx.Err(); err != nil {
				record(unit.SequenceIndex, model.ErrBackendUnavailable, err, false)
				return
			}

			rec, err := p.enricher.Enrich(ctx, windower.Window(unit))
			if err != nil {
				logger.Warnw("enrichment failed",
					"run_id", runID,
					"sequence_index", unit.SequenceIndex,
					"error", err.Error(),
				)
				record(unit.SequenceIndex, model.ErrEnrichment, err, false)
				return
			}

			skipped, err := p.indexer.IndexRecord(ctx, rec)
			if err != nil {
				logger.Warnw("index write failed",
					"run_id", runID,
					"sequence_index", unit.SequenceIndex,
					"error", err.Error(),
				)
			}
			record(unit.SequenceIndex, model.ErrUpsert, err, skipped)
		})
		if submitErr != nil {
			wg.Done()
			record(unit.SequenceIndex, model.ErrUpsert, submitErr, false)
		}
	}

	wg.Wait()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].SequenceIndex < report.Failures[j].SequenceIndex
	})

	logger.Infow("ingestion run finished",
		"run_id", runID,
		"source", p.config.SourceName,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)

	return report, nil
}

func newRunID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
