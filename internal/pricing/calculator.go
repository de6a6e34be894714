package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"cotizador_backend/platform/apperr"
)

// DefaultRoundingDecimals is the decimal count line totals round to unless a
// caller asks otherwise.
const DefaultRoundingDecimals = 2

// effectivePriceDecimals keeps small per-unit prices auditable after
// packaging division (e.g. a pack of 144 at 10.00).
const effectivePriceDecimals = 6

// PriceLine is an auditable line total.
type PriceLine struct {
	BillableUnits      float64
	LineTotal          float64
	LineTotalRaw       float64
	EffectiveUnitPrice float64
	Formula            string
	RoundingDecimals   int
}

// Calculate turns a resolved quantity and a catalog unit price into a line
// total. Rounding is half-to-even at the requested decimal count; callers
// must not assume half-up.
func Calculate(qtyInPricingUnit, pricingBaseQty, unitPrice float64, roundingDecimals int) (PriceLine, error) {
	switch {
	case qtyInPricingUnit <= 0 || math.IsNaN(qtyInPricingUnit) || math.IsInf(qtyInPricingUnit, 0):
		return PriceLine{}, apperr.Validation("quantity_in_pricing_unit must be greater than zero")
	case pricingBaseQty <= 0 || math.IsNaN(pricingBaseQty) || math.IsInf(pricingBaseQty, 0):
		return PriceLine{}, apperr.Validation("pricing_base_qty must be greater than zero")
	case unitPrice < 0 || math.IsNaN(unitPrice) || math.IsInf(unitPrice, 0):
		return PriceLine{}, apperr.Validation("unit_price must not be negative")
	case roundingDecimals < 0:
		return PriceLine{}, apperr.Validation("rounding_decimals must not be negative")
	}

	billableUnits := qtyInPricingUnit / pricingBaseQty
	raw := billableUnits * unitPrice

	return PriceLine{
		BillableUnits:      billableUnits,
		LineTotal:          roundTo(raw, roundingDecimals),
		LineTotalRaw:       raw,
		EffectiveUnitPrice: roundTo(unitPrice/pricingBaseQty, effectivePriceDecimals),
		Formula:            fmt.Sprintf("(%s / %s) * %s", formatOperand(qtyInPricingUnit), formatOperand(pricingBaseQty), formatOperand(unitPrice)),
		RoundingDecimals:   roundingDecimals,
	}, nil
}

// roundTo rounds half-to-even at the given decimal count.
func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*scale) / scale
}

// formatOperand renders a formula operand with an explicit decimal point so
// the audit string reads as arithmetic over reals, e.g. "(20.0 / 10.0) * 14.0".
func formatOperand(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
