// Package docvec wires the ingestion pipeline and the query API into a
// runnable service.
package docvec

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docvec/internal/docvec/handler"
	"github.com/kart-io/docvec/internal/docvec/router"
	"github.com/kart-io/docvec/internal/ingest"
	"github.com/kart-io/docvec/internal/ingest/enrich"
	"github.com/kart-io/docvec/internal/ingest/indexer"
	"github.com/kart-io/docvec/internal/ingest/ledger"
	"github.com/kart-io/docvec/internal/ingest/segment"
	"github.com/kart-io/docvec/internal/query"
	"github.com/kart-io/docvec/internal/store"
	"github.com/kart-io/docvec/pkg/component/milvus"
	"github.com/kart-io/docvec/pkg/llm"
	httpopts "github.com/kart-io/docvec/pkg/options/http"
	llmopts "github.com/kart-io/docvec/pkg/options/llm"
	milvusopts "github.com/kart-io/docvec/pkg/options/milvus"
	pipeopts "github.com/kart-io/docvec/pkg/options/pipeline"
	redisopts "github.com/kart-io/docvec/pkg/options/redis"

	// Registered LLM providers.
	_ "github.com/kart-io/docvec/pkg/llm/gemini"
	_ "github.com/kart-io/docvec/pkg/llm/ollama"
	_ "github.com/kart-io/docvec/pkg/llm/openai"
)

// Config carries the validated options the service runs on.
type Config struct {
	HTTP      *httpopts.Options
	Milvus    *milvusopts.Options
	Redis     *redisopts.Options
	Embedding *llmopts.ProviderOptions
	Chat      *llmopts.ProviderOptions
	Pipeline  *pipeopts.Options
}

// Runtime holds the shared collaborators behind both the ingest and query
// paths. The vector store handle is lazily initialized once and shared by
// every caller for the life of the process.
type Runtime struct {
	config *Config

	embedder llm.EmbeddingProvider
	chat     llm.ChatProvider
	redis    *goredis.Client
	ledger   *ledger.Ledger

	storeOnce sync.Once
	store     store.VectorStore
	storeErr  error
}

// NewRuntime builds providers and support services from the configuration.
// The vector store connection is deferred to first use.
func (c *Config) NewRuntime() (*Runtime, error) {
	embedder, err := llm.NewEmbeddingProvider(c.Embedding.Provider, c.Embedding.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	chat, err := llm.NewChatProvider(c.Chat.Provider, c.Chat.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create chat provider: %w", err)
	}

	rt := &Runtime{
		config:   c,
		embedder: embedder,
		chat:     chat,
	}

	if c.Redis != nil && c.Redis.Enabled {
		rt.redis = goredis.NewClient(&goredis.Options{
			Addr:         c.Redis.Addr(),
			Password:     c.Redis.Password,
			DB:           c.Redis.Database,
			MaxRetries:   c.Redis.MaxRetries,
			PoolSize:     c.Redis.PoolSize,
			DialTimeout:  c.Redis.DialTimeout,
			ReadTimeout:  c.Redis.ReadTimeout,
			WriteTimeout: c.Redis.WriteTimeout,
		})
		rt.embedder = llm.NewCachedEmbeddingProvider(embedder, rt.redis, nil)
		logger.Infow("embedding cache enabled", "redis", c.Redis.String())
	}

	if c.Pipeline.LedgerPath != "" {
		lg, err := ledger.Open(c.Pipeline.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open ingest ledger: %w", err)
		}
		rt.ledger = lg
	}

	return rt, nil
}

// OpenStore returns the shared vector store handle, connecting on first use.
func (rt *Runtime) OpenStore(ctx context.Context) (store.VectorStore, error) {
	rt.storeOnce.Do(func() {
		client, err := milvus.New(rt.config.Milvus)
		if err != nil {
			rt.storeErr = err
			return
		}
		rt.store = store.NewMilvusStore(client)
		logger.Infow("vector store connected", "address", rt.config.Milvus.Address)
	})
	if rt.storeErr != nil {
		return nil, fmt.Errorf("failed to connect vector store: %w", rt.storeErr)
	}
	return rt.store, nil
}

// Searcher builds the shared read-path searcher.
func (rt *Runtime) Searcher() *query.Searcher {
	return query.NewSearcher(rt.OpenStore, rt.embedder, &query.Config{
		Collection: rt.config.Pipeline.Collection,
	})
}

// NewPipeline builds an ingestion pipeline for one source document.
func (rt *Runtime) NewPipeline(ctx context.Context, sourceName string, dryRun bool) (*ingest.Pipeline, error) {
	if sourceName == "" {
		return nil, fmt.Errorf("source name is required")
	}

	vectorStore, err := rt.OpenStore(ctx)
	if err != nil {
		return nil, err
	}

	cfg := rt.config.Pipeline

	adapter := segment.NewAdapter(&segment.Config{PageOffset: cfg.PageOffset})
	enricher := enrich.New(rt.chat, &enrich.Config{
		SourceName:    sourceName,
		ExcerptBudget: cfg.ExcerptBudget,
	})
	idx := indexer.New(vectorStore, rt.embedder, rt.ledger, &indexer.Config{
		Collection:   cfg.Collection,
		EmbeddingDim: cfg.EmbeddingDim,
		Workers:      cfg.Workers,
	})

	return ingest.New(adapter, enricher, idx, &ingest.Config{
		SourceName: sourceName,
		Workers:    cfg.Workers,
		DryRun:     dryRun,
	}), nil
}

// ForgetSource drops the ledger entries for a source so the next run
// re-indexes every unit.
func (rt *Runtime) ForgetSource(ctx context.Context, sourceName string) error {
	if rt.ledger == nil {
		return nil
	}
	return rt.ledger.Forget(ctx, sourceName)
}

// Close releases every held resource.
func (rt *Runtime) Close(ctx context.Context) {
	if rt.store != nil {
		if err := rt.store.Close(ctx); err != nil {
			logger.Warnw("failed to close vector store", "error", err.Error())
		}
	}
	if rt.ledger != nil {
		if err := rt.ledger.Close(); err != nil {
			logger.Warnw("failed to close ingest ledger", "error", err.Error())
		}
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			logger.Warnw("failed to close redis client", "error", err.Error())
		}
	}
}

// Server is the docvec HTTP server.
type Server struct {
	config     *Config
	runtime    *Runtime
	searcher   *query.Searcher
	httpServer *http.Server
}

// NewServer creates the HTTP server from the configuration.
func (c *Config) NewServer(ctx context.Context) (*Server, error) {
	rt, err := c.NewRuntime()
	if err != nil {
		return nil, err
	}

	searcher := rt.Searcher()

	h := handler.NewHandler(searcher, func(sourceName string, dryRun bool) (*ingest.Pipeline, error) {
		return rt.NewPipeline(ctx, sourceName, dryRun)
	}, c.Pipeline.TopK, c.Pipeline.MaxTopK)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	router.Register(engine, h)

	return &Server{
		config:   c,
		runtime:  rt,
		searcher: searcher,
		httpServer: &http.Server{
			Addr:         c.HTTP.Addr,
			Handler:      engine,
			ReadTimeout:  c.HTTP.ReadTimeout,
			WriteTimeout: c.HTTP.WriteTimeout,
			IdleTimeout:  c.HTTP.IdleTimeout,
		},
	}, nil
}

// Run starts the server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("http server starting", "addr", s.config.HTTP.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("http shutdown failed", "error", err.Error())
	}
	s.runtime.Close(shutdownCtx)
	return nil
}
