// Package handler provides HTTP handlers for the docvec service.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docvec/internal/ingest"
	"github.com/kart-io/docvec/internal/ingest/segment"
	"github.com/kart-io/docvec/internal/model"
	"github.com/kart-io/docvec/internal/query"
)

// MaxTopK is the hard ceiling on per-request result counts. The core does
// not enforce this; the caller-facing layer does.
const MaxTopK = 20

// searchTimeout bounds one search request end to end, including the query
// embedding call.
const searchTimeout = 60 * time.Second

// PipelineFactory builds an ingestion pipeline for one source document.
type PipelineFactory func(sourceName string, dryRun bool) (*ingest.Pipeline, error)

// Handler handles docvec HTTP requests.
type Handler struct {
	searcher    *query.Searcher
	newPipeline PipelineFactory
	defaultTopK int
	maxTopK     int
}

// NewHandler creates a Handler. A nil pipeline factory disables the ingest
// endpoint.
func NewHandler(searcher *query.Searcher, newPipeline PipelineFactory, defaultTopK, maxTopK int) *Handler {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if maxTopK <= 0 || maxTopK > MaxTopK {
		maxTopK = MaxTopK
	}
	return &Handler{
		searcher:    searcher,
		newPipeline: newPipeline,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
	}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SearchRequest represents a similarity search request.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	K     int    `json:"k"`
}

// SearchResponse carries the normalized results.
type SearchResponse struct {
	Query   string                `json:"query"`
	K       int                   `json:"k"`
	Results []*model.SearchResult `json:"results"`
}

// Search performs a similarity search and returns normalized results in
// descending relevance order.
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	k := req.K
	if k <= 0 {
		k = h.defaultTopK
	}
	if k > h.maxTopK {
		k = h.maxTopK
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), searchTimeout)
	defer cancel()

	results, err := h.searcher.Search(ctx, req.Query, k)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.JSON(http.StatusRequestTimeout, ErrorResponse{Code: 408, Message: "search timeout"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    0,
		Message: "success",
		Data: SearchResponse{
			Query:   req.Query,
			K:       k,
			Results: results,
		},
	})
}

// IngestRequest represents an ingestion request. Elements is the external
// segmenter's ordered output for one document.
type IngestRequest struct {
	SourceName string            `json:"source_name" binding:"required"`
	Elements   []segment.Element `json:"elements" binding:"required"`
	DryRun     bool              `json:"dry_run"`
}

// Ingest runs the ingestion pipeline over pre-segmented elements and returns
// the run report.
func (h *Handler) Ingest(c *gin.Context) {
	if h.newPipeline == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Code: 501, Message: "ingestion is not enabled on this server"})
		return
	}

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	pipeline, err := h.newPipeline(req.SourceName, req.DryRun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	units := pipeline.Adapt(req.Elements)

	report, err := pipeline.RunUnits(c.Request.Context(), units)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	logger.Infow("ingest request finished",
		"source", req.SourceName,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: report})
}

// StatsResponse reports collection statistics.
type StatsResponse struct {
	VectorCount    int64 `json:"vector_count"`
	EstimatedUnits int64 `json:"estimated_units"`
}

// Stats returns the vector count plus the unit count estimated from the
// highest indexed sequence index.
func (h *Handler) Stats(c *gin.Context) {
	count, err := h.searcher.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	estimated, err := h.searcher.EstimatedUnits(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    0,
		Message: "success",
		Data: StatsResponse{
			VectorCount:    count,
			EstimatedUnits: estimated,
		},
	})
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
