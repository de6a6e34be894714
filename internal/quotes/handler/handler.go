// Package handler exposes the quote resolution HTTP endpoint.
package handler

import (
	"net/http"

	"cotizador_backend/internal/catalog/repository"
	"cotizador_backend/internal/quotes/agent"
	"cotizador_backend/internal/quotes/transport"
	"cotizador_backend/platform/httpkit"
	"cotizador_backend/platform/logger"
	"cotizador_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for quote resolution
type Handler struct {
	orc *agent.Orchestrator
	val *validator.Validator
	log *logger.Logger
}

// New creates a new quotes handler
func New(orc *agent.Orchestrator, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{orc: orc, val: val, log: log}
}

// RegisterRoutes registers the quote resolution routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resolve", h.Resolve)
}

// Resolve handles POST /api/v1/quotes/resolve
func (h *Handler) Resolve(c *gin.Context) {
	var req transport.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	scope := repository.Scope{OrganizationID: req.OrganizationID, UserID: req.UserID}
	if err := scope.Validate(); httpkit.HandleError(c, err) {
		return
	}

	products := make([]agent.ProductRequest, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, agent.ProductRequest{
			Name:      p.Name,
			Quantity:  p.Quantity,
			Unit:      p.Unit,
			UnitPrice: p.UnitPrice,
			UnitCost:  p.UnitCost,
		})
	}

	result, err := h.orc.Orchestrate(c.Request.Context(), products, scope, req.Context)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
