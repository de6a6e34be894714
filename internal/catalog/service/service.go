// Package service exposes catalog reads and embedding-cache invalidation to
// the rest of the engine.
package service

import (
	"context"

	"cotizador_backend/internal/catalog/cache"
	"cotizador_backend/internal/catalog/repository"
	"cotizador_backend/platform/logger"
)

// Service wraps the catalog reader and owns cache invalidation. Invalidation
// is triggered by mutation notifications from the import collaborator, never
// by searches.
type Service struct {
	repo  repository.Reader
	cache *cache.Store
	log   *logger.Logger
}

// New creates the catalog service.
func New(repo repository.Reader, store *cache.Store, log *logger.Logger) *Service {
	return &Service{repo: repo, cache: store, log: log}
}

// Reader returns the underlying read-only repository.
func (s *Service) Reader() repository.Reader {
	return s.repo
}

// InvalidateEmbeddings deletes the scope's embedding snapshot. The snapshot is
// not regenerated here; semantic search degrades until the external re-embed
// job rebuilds it.
func (s *Service) InvalidateEmbeddings(ctx context.Context, scope repository.Scope) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, scope); err != nil {
		s.log.Error("embedding cache invalidation failed", "scope", scope.Key(), "error", err)
		return err
	}
	s.log.Info("embedding cache invalidated", "scope", scope.Key())
	return nil
}
