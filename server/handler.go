// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/huykn/assessment-cache/cache"
	"github.com/huykn/assessment-cache/types"
)

// Pipeline is the part of the root pipeline the handler needs.
type Pipeline interface {
	HandleEvent(ctx context.Context, event types.Event) (any, error)
	Stats() cache.Stats
}

// Handler serves measurement-protocol hits.
type Handler struct {
	pipeline Pipeline
	logger   cache.Logger
}

// NewHandler creates a Handler.
func NewHandler(pipeline Pipeline, logger cache.Logger) *Handler {
	if logger == nil {
		logger = cache.NewNoOpLogger()
	}
	return &Handler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers the collection and stats routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/mp/collect", h.Collect)
	r.GET("/stats", h.Stats)
}

// NewRouter returns an engine with recovery and the handler's routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	h.RegisterRoutes(&router.RouterGroup)
	return router
}

// Collect runs one event through the pipeline and responds with the
// variable value.
func (h *Handler) Collect(c *gin.Context) {
	var event types.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		h.respondWithError(c, http.StatusBadRequest, "Invalid event data", err)
		return
	}
	if !isRelevantEvent(event) {
		c.JSON(http.StatusAccepted, gin.H{"status": "ignored"})
		return
	}

	value, err := h.pipeline.HandleEvent(c.Request.Context(), event)
	if err != nil {
		h.logger.Error("Event output failed",
			"error", err,
			"path", c.Request.URL.Path,
			"client_id", event.String(types.FieldClientID))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Event output failed", "value": value})
		return
	}

	c.JSON(http.StatusOK, gin.H{"value": value})
}

// Stats reports cache statistics.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Stats())
}

func (h *Handler) respondWithError(c *gin.Context, code int, message string, err error) {
	h.logger.Error(message,
		"error", err,
		"path", c.Request.URL.Path,
		"method", c.Request.Method)
	c.JSON(code, gin.H{"error": message})
}

// isRelevantEvent reports whether event is a measurement-protocol hit. Hits
// always identify the client.
func isRelevantEvent(event types.Event) bool {
	return event.String(types.FieldClientID) != ""
}
