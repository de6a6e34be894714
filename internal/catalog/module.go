// Package catalog provides the catalog domain module: the product reader,
// the embedding snapshot cache, and the mutation-notification endpoint.
package catalog

import (
	"cotizador_backend/internal/catalog/cache"
	"cotizador_backend/internal/catalog/handler"
	"cotizador_backend/internal/catalog/repository"
	"cotizador_backend/internal/catalog/service"
	apphttp "cotizador_backend/internal/http"
	"cotizador_backend/internal/scheduler"
	"cotizador_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module represents the catalog domain module. Other modules consume its
// reader and snapshot store; the import collaborator notifies it of catalog
// mutations through the invalidation endpoint.
type Module struct {
	service *service.Service
	store   *cache.Store
	repo    *repository.Repo
	handler *handler.Handler
}

// NewModule creates a new catalog module. rdb may be nil when Redis is
// not configured; the snapshot store is then absent and semantic search
// degrades to the earlier stages. sched may be nil; invalidation then
// runs synchronously instead of through the task queue.
func NewModule(pool *pgxpool.Pool, rdb *redis.Client, sched scheduler.InvalidationScheduler, log *logger.Logger) *Module {
	repo := repository.New(pool)

	var store *cache.Store
	if rdb != nil {
		store = cache.New(rdb)
	}

	svc := service.New(repo, store, log)

	return &Module{
		service: svc,
		store:   store,
		repo:    repo,
		handler: handler.New(sched, svc, log),
	}
}

// Service exposes catalog operations for the scheduler worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the product reader for the matching cascade.
func (m *Module) Repository() *repository.Repo {
	return m.repo
}

// SnapshotStore exposes the embedding snapshot store. Nil when Redis is
// not configured.
func (m *Module) SnapshotStore() *cache.Store {
	return m.store
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "catalog"
}

// RegisterRoutes registers the module's routes under /api/v1/catalog
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	catalog := ctx.V1.Group("/catalog")
	m.handler.RegisterRoutes(catalog)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
