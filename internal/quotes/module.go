// Package quotes provides the quote resolution domain module.
package quotes

import (
	catalogrepo "cotizador_backend/internal/catalog/repository"
	apphttp "cotizador_backend/internal/http"
	"cotizador_backend/internal/matching"
	"cotizador_backend/internal/quotes/agent"
	"cotizador_backend/internal/quotes/handler"
	"cotizador_backend/platform/logger"
	"cotizador_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the quotes domain module
type Module struct {
	handler      *handler.Handler
	orchestrator *agent.Orchestrator
}

// NewModule creates a new quotes module with all dependencies wired.
// llm and embedder may be nil; resolution then runs the deterministic
// path only.
func NewModule(pool *pgxpool.Pool, snapshots matching.SnapshotStore, embedder matching.Embedder, llm agent.LLM, val *validator.Validator, log *logger.Logger) *Module {
	repo := catalogrepo.New(pool)
	cascade := matching.New(repo, snapshots, embedder, log)
	tools := agent.NewToolExecutor(cascade, log)
	orc := agent.New(llm, tools, log)
	h := handler.New(orc, val, log)

	return &Module{
		handler:      h,
		orchestrator: orc,
	}
}

// Orchestrator exposes the resolution engine for non-HTTP callers.
func (m *Module) Orchestrator() *agent.Orchestrator {
	return m.orchestrator
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "quotes"
}

// RegisterRoutes registers the module's routes under /api/v1/quotes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	quotes := ctx.V1.Group("/quotes")
	m.handler.RegisterRoutes(quotes)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
