package repository

import (
	"context"

	"github.com/google/uuid"

	"cotizador_backend/platform/apperr"
)

// Product is a catalog entry as stored by the import side. This engine only
// ever reads products; creation and updates belong to the catalog-management
// collaborator.
type Product struct {
	ID             uuid.UUID
	OrganizationID *uuid.UUID
	UserID         *uuid.UUID
	Name           string
	Code           *string
	// Unit is the free-text pricing unit label and may encode packaging,
	// e.g. "pack x10" or "docena".
	Unit      string
	UnitCost  float64
	UnitPrice float64
	Active    bool
}

// Scope identifies the tenant boundary a search runs in: an organization or an
// individual user, never both.
type Scope struct {
	OrganizationID *uuid.UUID
	UserID         *uuid.UUID
}

// Validate checks that exactly one owner is set.
func (s Scope) Validate() error {
	if (s.OrganizationID == nil) == (s.UserID == nil) {
		return apperr.Validation("scope must set exactly one of organization or user")
	}
	return nil
}

// Key returns the stable cache/log key for this scope.
func (s Scope) Key() string {
	if s.OrganizationID != nil {
		return "org:" + s.OrganizationID.String()
	}
	if s.UserID != nil {
		return "user:" + s.UserID.String()
	}
	return "none"
}

// Reader is the read-only catalog access this engine needs.
type Reader interface {
	// FindByExactName returns the active product whose name equals the query
	// case-insensitively within the scope, or apperr.NotFound.
	FindByExactName(ctx context.Context, name string, scope Scope) (*Product, error)
	// FindByNameToken returns up to limit active products whose name contains
	// the token as a substring, scoped and ordered by id for deterministic
	// tie-breaking.
	FindByNameToken(ctx context.Context, token string, scope Scope, limit int) ([]Product, error)
	// GetByID returns the product by id within the scope, or apperr.NotFound.
	GetByID(ctx context.Context, id uuid.UUID, scope Scope) (*Product, error)
}
