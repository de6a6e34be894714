// Package repository implements read-only access to the tenant catalog table.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cotizador_backend/platform/apperr"
)

const productNotFoundMessage = "product not found"

const productColumns = `id, organization_id, user_id, name, code, unit, unit_cost, unit_price, active`

// Repo implements the catalog Reader over postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new catalog repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Reader.
var _ Reader = (*Repo)(nil)

// scopeClause returns the WHERE fragment and argument for the tenant scope.
// An entry owned by an organization can never match under a user scope: user
// scope additionally requires organization_id to be absent.
func scopeClause(scope Scope, argPos int) (string, interface{}) {
	if scope.OrganizationID != nil {
		return fmt.Sprintf("organization_id = $%d", argPos), *scope.OrganizationID
	}
	return fmt.Sprintf("user_id = $%d AND organization_id IS NULL", argPos), *scope.UserID
}

// FindByExactName returns the active product matching the name case-insensitively.
func (r *Repo) FindByExactName(ctx context.Context, name string, scope Scope) (*Product, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	clause, arg := scopeClause(scope, 2)
	query := fmt.Sprintf(`
		SELECT %s
		FROM catalog_products
		WHERE LOWER(name) = LOWER($1) AND active AND %s
		ORDER BY id
		LIMIT 1`, productColumns, clause)

	var p Product
	if err := r.pool.QueryRow(ctx, query, name, arg).Scan(
		&p.ID, &p.OrganizationID, &p.UserID, &p.Name, &p.Code, &p.Unit, &p.UnitCost, &p.UnitPrice, &p.Active,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(productNotFoundMessage)
		}
		return nil, fmt.Errorf("find product by exact name: %w", err)
	}

	return &p, nil
}

// FindByNameToken returns active products whose name contains the token.
func (r *Repo) FindByNameToken(ctx context.Context, token string, scope Scope, limit int) ([]Product, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	clause, arg := scopeClause(scope, 2)
	query := fmt.Sprintf(`
		SELECT %s
		FROM catalog_products
		WHERE name ILIKE '%%' || $1 || '%%' AND active AND %s
		ORDER BY id
		LIMIT $3`, productColumns, clause)

	rows, err := r.pool.Query(ctx, query, escapeLike(token), arg, limit)
	if err != nil {
		return nil, fmt.Errorf("find products by name token: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.OrganizationID, &p.UserID, &p.Name, &p.Code, &p.Unit, &p.UnitCost, &p.UnitPrice, &p.Active,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE metacharacters so a token like "100%" matches
// literally instead of acting as a wildcard.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// GetByID returns the product by id within the scope.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID, scope Scope) (*Product, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	clause, arg := scopeClause(scope, 2)
	query := fmt.Sprintf(`
		SELECT %s
		FROM catalog_products
		WHERE id = $1 AND %s`, productColumns, clause)

	var p Product
	if err := r.pool.QueryRow(ctx, query, id, arg).Scan(
		&p.ID, &p.OrganizationID, &p.UserID, &p.Name, &p.Code, &p.Unit, &p.UnitCost, &p.UnitPrice, &p.Active,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(productNotFoundMessage)
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	return &p, nil
}
