// Package handler exposes the catalog mutation-notification endpoint.
package handler

import (
	"context"
	"net/http"

	"cotizador_backend/internal/catalog/repository"
	"cotizador_backend/internal/scheduler"
	"cotizador_backend/platform/httpkit"
	"cotizador_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

// EmbeddingInvalidator drops a tenant's embedding snapshot synchronously.
// It backs the endpoint when no task queue is configured.
type EmbeddingInvalidator interface {
	InvalidateEmbeddings(ctx context.Context, scope repository.Scope) error
}

// InvalidateRequest identifies the tenant whose catalog was mutated.
type InvalidateRequest struct {
	OrganizationID *uuid.UUID `json:"organizationId,omitempty"`
	UserID         *uuid.UUID `json:"userId,omitempty"`
}

// Handler receives catalog mutation notifications from the import
// collaborator and schedules embedding cache invalidation.
type Handler struct {
	sched   scheduler.InvalidationScheduler
	catalog EmbeddingInvalidator
	log     *logger.Logger
}

// New creates the catalog handler. sched may be nil; invalidation then
// runs synchronously against the cache instead of through the queue.
func New(sched scheduler.InvalidationScheduler, catalog EmbeddingInvalidator, log *logger.Logger) *Handler {
	return &Handler{sched: sched, catalog: catalog, log: log}
}

// RegisterRoutes mounts the catalog routes on the given router group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/embeddings/invalidate", h.InvalidateEmbeddings)
}

// InvalidateEmbeddings handles POST /embeddings/invalidate.
func (h *Handler) InvalidateEmbeddings(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	scope := repository.Scope{OrganizationID: req.OrganizationID, UserID: req.UserID}
	if err := scope.Validate(); httpkit.HandleError(c, err) {
		return
	}

	if h.sched == nil {
		if err := h.catalog.InvalidateEmbeddings(c.Request.Context(), scope); httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, gin.H{"status": "invalidated"})
		return
	}

	payload := scheduler.EmbeddingsInvalidatePayload{}
	if scope.OrganizationID != nil {
		payload.OrganizationID = scope.OrganizationID.String()
	}
	if scope.UserID != nil {
		payload.UserID = scope.UserID.String()
	}

	if err := h.sched.ScheduleEmbeddingsInvalidation(c.Request.Context(), payload); httpkit.HandleError(c, err) {
		return
	}

	h.log.Info("embedding invalidation scheduled", "scope", scope.Key())
	httpkit.OK(c, gin.H{"status": "scheduled"})
}
