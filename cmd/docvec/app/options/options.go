// Package options contains flags and options for initializing docvec.
package options

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/kart-io/docvec/internal/docvec"
	httpopts "github.com/kart-io/docvec/pkg/options/http"
	llmopts "github.com/kart-io/docvec/pkg/options/llm"
	logopts "github.com/kart-io/docvec/pkg/options/logger"
	milvusopts "github.com/kart-io/docvec/pkg/options/milvus"
	pipeopts "github.com/kart-io/docvec/pkg/options/pipeline"
	redisopts "github.com/kart-io/docvec/pkg/options/redis"
)

// ServerOptions contains the configuration options for docvec.
type ServerOptions struct {
	// HTTP contains HTTP server configuration.
	HTTP *httpopts.Options `json:"http" mapstructure:"http"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Milvus contains vector store configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Redis contains embedding cache configuration.
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`

	// Embedding contains the embedding provider configuration.
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains the summarization provider configuration.
	Chat *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// Pipeline contains ingestion and retrieval configuration.
	Pipeline *pipeopts.Options `json:"pipeline" mapstructure:"pipeline"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTP:      httpopts.NewOptions(),
		Log:       logopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Redis:     redisopts.NewOptions(),
		Embedding: llmopts.NewEmbeddingOptions(),
		Chat:      llmopts.NewChatOptions(),
		Pipeline:  pipeopts.NewOptions(),
	}
}

// AddFlags adds all docvec flags to the given flagset.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Redis.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding")
	o.Chat.AddFlags(fs, "chat")
	o.Pipeline.AddFlags(fs)
}

// Complete fills in defaults that depend on other options.
func (o *ServerOptions) Complete() error {
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	return o.Chat.Complete()
}

// Validate checks all options for conflicts and missing values.
func (o *ServerOptions) Validate() error {
	var errs []error

	if err := o.HTTP.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := o.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.Milvus.Validate()...)
	errs = append(errs, o.Redis.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Chat.Validate()...)
	errs = append(errs, o.Pipeline.Validate()...)

	return errors.Join(errs...)
}

// Config builds the runnable service configuration from the options.
func (o *ServerOptions) Config() (*docvec.Config, error) {
	if err := o.Complete(); err != nil {
		return nil, err
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	return &docvec.Config{
		HTTP:      o.HTTP,
		Milvus:    o.Milvus,
		Redis:     o.Redis,
		Embedding: o.Embedding,
		Chat:      o.Chat,
		Pipeline:  o.Pipeline,
	}, nil
}
