// Package router registers the docvec HTTP routes.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docvec/internal/docvec/handler"
)

// Register wires the docvec routes onto the gin engine.
func Register(engine *gin.Engine, h *handler.Handler) {
	engine.GET("/healthz", h.Healthz)

	v1 := engine.Group("/v1")
	{
		v1.POST("/search", h.Search)
		v1.POST("/ingest", h.Ingest)
		v1.GET("/stats", h.Stats)
	}
}
