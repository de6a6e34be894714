package pricing

import (
	"fmt"
	"math"

	"cotizador_backend/platform/apperr"
)

// UnitResolution reconciles a requested quantity/unit against the catalog's
// pricing unit. Compatible is true exactly when QuantityInPricingUnit is set.
type UnitResolution struct {
	RequestedQuantity     float64
	RequestedUnit         string
	PricingUnit           string
	PricingBaseQty        float64
	QuantityInPricingUnit *float64
	ConversionFactor      *float64
	Compatible            bool
	RequiresClarification bool
	Message               string
}

// Resolve converts the requested quantity into the catalog's pricing unit.
// It is a pure function: identical inputs always yield identical outputs.
//
// Unsupported unit pairs are never guessed; they come back incompatible with
// RequiresClarification set so a human can decide.
func Resolve(requestedQty float64, requestedUnit, catalogUnitLabel string) (UnitResolution, error) {
	if requestedQty <= 0 || math.IsNaN(requestedQty) || math.IsInf(requestedQty, 0) {
		return UnitResolution{}, apperr.Validation("requested_quantity must be greater than zero")
	}

	reqUnit := CanonicalUnit(requestedUnit)
	packaging := ParsePackaging(catalogUnitLabel)

	res := UnitResolution{
		RequestedQuantity: requestedQty,
		RequestedUnit:     reqUnit,
		PricingUnit:       packaging.BaseUnit,
		PricingBaseQty:    packaging.BaseQty,
	}

	factor, ok := conversionFactor(reqUnit, packaging.BaseUnit)
	if !ok {
		res.RequiresClarification = true
		res.Message = fmt.Sprintf("no conversion from %q to %q; clarification required", reqUnit, packaging.BaseUnit)
		return res, nil
	}

	converted := requestedQty * factor
	res.QuantityInPricingUnit = &converted
	res.ConversionFactor = &factor
	res.Compatible = true
	return res, nil
}
