package pricing

import (
	"fmt"
	"math"
)

// DefaultTolerance is carried through for the downstream consistency check on
// quoted totals; the verifier itself does not enforce it.
const DefaultTolerance = 0.02

// VerifyItem is one priced line presented for verification. A nil LineTotal
// marks a line the pricing path could not complete.
type VerifyItem struct {
	LineTotal *float64
}

// PricingSummary aggregates a batch of priced lines.
type PricingSummary struct {
	ItemsCount int
	Subtotal   float64
	Errors     []string
	IsValid    bool
	Tolerance  float64
}

// Verify sums the valid line totals of a batch. A missing or non-numeric
// total is recorded as a per-line error and processing continues; this is a
// deliberate partial-failure policy, unlike Resolve and Calculate which
// reject the whole call.
func Verify(items []VerifyItem, tolerance float64) PricingSummary {
	summary := PricingSummary{
		ItemsCount: len(items),
		Tolerance:  tolerance,
	}

	var subtotal float64
	for i, item := range items {
		if item.LineTotal == nil || math.IsNaN(*item.LineTotal) || math.IsInf(*item.LineTotal, 0) {
			summary.Errors = append(summary.Errors, fmt.Sprintf("item %d: missing or invalid line_total", i+1))
			continue
		}
		subtotal += *item.LineTotal
	}

	// Rounded once at the end, not per addition.
	summary.Subtotal = roundTo(subtotal, DefaultRoundingDecimals)
	summary.IsValid = len(summary.Errors) == 0
	return summary
}
