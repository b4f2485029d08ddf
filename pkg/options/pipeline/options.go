// Package pipeline provides ingestion and retrieval pipeline options.
package pipeline

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/docvec/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains pipeline-specific configuration.
type Options struct {
	// Collection is the name of the vector collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// Workers caps concurrent enrichment and index calls per run.
	Workers int `json:"workers" mapstructure:"workers"`

	// ExcerptBudget is the character budget for source excerpts.
	ExcerptBudget int `json:"excerpt-budget" mapstructure:"excerpt-budget"`

	// PageOffset shifts segmenter page numbers by a fixed amount, for
	// sources whose extraction starts counting past front matter.
	PageOffset int `json:"page-offset" mapstructure:"page-offset"`

	// LedgerPath is the path of the upsert ledger database. Empty disables
	// the ledger.
	LedgerPath string `json:"ledger-path" mapstructure:"ledger-path"`

	// TopK is the default number of search results.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MaxTopK bounds the per-request result count at the API layer.
	MaxTopK int `json:"max-top-k" mapstructure:"max-top-k"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Collection:    "docvec_records",
		EmbeddingDim:  768, // nomic-embed-text dimension
		Workers:       4,
		ExcerptBudget: 300,
		TopK:          5,
		MaxTopK:       20,
	}
}

// AddFlags adds flags for pipeline options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"pipeline.collection", o.Collection, "Vector collection name.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"pipeline.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.Workers, options.Join(prefixes...)+"pipeline.workers", o.Workers, "Concurrent enrichment and index calls per run.")
	fs.IntVar(&o.ExcerptBudget, options.Join(prefixes...)+"pipeline.excerpt-budget", o.ExcerptBudget, "Character budget for source excerpts.")
	fs.IntVar(&o.PageOffset, options.Join(prefixes...)+"pipeline.page-offset", o.PageOffset, "Fixed offset added to segmenter page numbers.")
	fs.StringVar(&o.LedgerPath, options.Join(prefixes...)+"pipeline.ledger-path", o.LedgerPath, "Upsert ledger database path (empty disables the ledger).")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"pipeline.top-k", o.TopK, "Default number of search results.")
	fs.IntVar(&o.MaxTopK, options.Join(prefixes...)+"pipeline.max-top-k", o.MaxTopK, "Maximum number of search results per request.")
}

// Validate validates the pipeline options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("collection is required"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.MaxTopK < o.TopK {
		errs = append(errs, fmt.Errorf("max-top-k must be >= top-k"))
	}
	return errs
}
