// Package transport defines the wire types for the quote resolution endpoint.
package transport

import "github.com/google/uuid"

// ProductInput is one free-text product mention in a resolve request.
type ProductInput struct {
	Name      string   `json:"name" validate:"required,min=1,max=300"`
	Quantity  float64  `json:"quantity" validate:"required,gt=0"`
	Unit      string   `json:"unit,omitempty" validate:"max=60"`
	UnitPrice *float64 `json:"unitPrice,omitempty" validate:"omitempty,gte=0"`
	UnitCost  *float64 `json:"unitCost,omitempty" validate:"omitempty,gte=0"`
}

// ResolveRequest is the request body for POST /api/v1/quotes/resolve.
// Exactly one of OrganizationID or UserID selects the catalog scope.
type ResolveRequest struct {
	OrganizationID *uuid.UUID     `json:"organizationId,omitempty"`
	UserID         *uuid.UUID     `json:"userId,omitempty"`
	Products       []ProductInput `json:"products" validate:"required,min=1,max=50,dive"`
	Context        string         `json:"context,omitempty" validate:"max=2000"`
}
