// Package cache reads the per-tenant catalog embedding snapshot from redis.
//
// The snapshot is written exclusively by the import/update side when it
// re-embeds a catalog. This engine only reads the snapshot for semantic search
// and deletes the key when it is told the catalog changed; it never
// regenerates vectors. An absent key simply disables semantic search until
// the external job re-embeds.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cotizador_backend/internal/catalog/repository"
)

const keyPrefix = "catalog:embeddings:"

// Entry is one cached product with its embedding vector.
type Entry struct {
	Name      string    `json:"name"`
	Cost      float64   `json:"cost"`
	Price     float64   `json:"price"`
	Embedding []float32 `json:"embedding"`
}

// Snapshot maps product id to its cached entry.
type Snapshot map[string]Entry

// Store reads and invalidates embedding snapshots.
type Store struct {
	rdb *redis.Client
}

// New creates a snapshot store over the given redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Key returns the redis key for a tenant scope.
func Key(scope repository.Scope) string {
	return keyPrefix + scope.Key()
}

// Get loads the snapshot for the scope. The second return value reports
// whether the key exists; absence is a normal state, not an error.
func (s *Store) Get(ctx context.Context, scope repository.Scope) (Snapshot, bool, error) {
	raw, err := s.rdb.Get(ctx, Key(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get embedding snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("decode embedding snapshot: %w", err)
	}

	return snap, true, nil
}

// Delete removes the snapshot for the scope. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, scope repository.Scope) error {
	if err := s.rdb.Del(ctx, Key(scope)).Err(); err != nil {
		return fmt.Errorf("delete embedding snapshot: %w", err)
	}
	return nil
}
