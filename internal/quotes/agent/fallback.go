package agent

import (
	"context"
	"math"

	"cotizador_backend/internal/catalog/repository"
	"cotizador_backend/internal/matching"
	"cotizador_backend/internal/pricing"
)

// fallback is the fully deterministic pipeline: single-best search, unit
// resolution, price calculation and one verification pass. It never drops a
// product and is idempotent over the same batch.
func (o *Orchestrator) fallback(ctx context.Context, products []ProductRequest, scope repository.Scope) *Result {
	items := make([]ResolvedItem, 0, len(products))
	verify := make([]pricing.VerifyItem, 0, len(products))

	for _, product := range products {
		item := o.resolveDeterministic(ctx, product, scope)
		items = append(items, item)
		verify = append(verify, pricing.VerifyItem{LineTotal: item.LineTotal})
	}

	batch := pricing.Verify(verify, pricing.DefaultTolerance)
	summary := summarize(items)
	summary.Subtotal = batch.Subtotal

	return &Result{Status: "fallback", Items: items, Summary: summary}
}

// resolveDeterministic prices one product without the model. A candidate is
// treated as a confirmed match only at or above the confirmation threshold;
// anything weaker keeps the line but flags it for human review.
func (o *Orchestrator) resolveDeterministic(ctx context.Context, product ProductRequest, scope repository.Scope) ResolvedItem {
	item := ResolvedItem{
		RequestedName: product.Name,
		Quantity:      product.Quantity,
		Unit:          pricing.CanonicalUnit(product.Unit),
	}

	if product.Quantity <= 0 {
		item.RequiresClarification = true
		item.Note = "requested quantity must be greater than zero"
		return item
	}

	candidate, err := o.tools.searcher.Search(ctx, product.Name, scope)
	if err != nil {
		// Scope errors and the like; treat as no match rather than aborting.
		candidate = nil
	}

	if candidate != nil {
		item.ProductID = candidate.Product.ID.String()
		item.CatalogName = candidate.Product.Name
		item.MatchType = string(candidate.MatchType)
		item.Confidence = candidate.Confidence
	}

	if candidate == nil || candidate.Confidence < matching.ConfirmThreshold {
		item.RequiresClarification = true
		if candidate == nil {
			item.Note = "no catalog match found"
		} else {
			item.Note = "catalog match below confirmation threshold"
		}
		o.naiveLine(&item, product, candidate)
		return item
	}

	item.Matched = true
	item.UnitPrice = candidate.Product.UnitPrice

	res, err := pricing.Resolve(product.Quantity, product.Unit, candidate.Product.Unit)
	if err != nil || !res.Compatible {
		item.RequiresClarification = true
		if res.Message != "" {
			item.Note = res.Message
		} else {
			item.Note = "unit resolution failed"
		}
		o.naiveLine(&item, product, candidate)
		return item
	}

	item.PricingUnit = res.PricingUnit
	line, err := pricing.Calculate(*res.QuantityInPricingUnit, res.PricingBaseQty, candidate.Product.UnitPrice, pricing.DefaultRoundingDecimals)
	if err != nil {
		item.RequiresClarification = true
		item.Note = err.Error()
		o.naiveLine(&item, product, candidate)
		return item
	}

	item.LineTotal = &line.LineTotal
	item.Formula = line.Formula
	return item
}

// naiveLine computes the conservative quantity × unit-price total used when
// the proper pipeline cannot complete, preferring the candidate's catalog
// price, then the price quoted in the request, then zero.
func (o *Orchestrator) naiveLine(item *ResolvedItem, product ProductRequest, candidate *matching.Candidate) {
	var unitPrice float64
	switch {
	case candidate != nil && candidate.Product.UnitPrice > 0:
		unitPrice = candidate.Product.UnitPrice
	case product.UnitPrice != nil && *product.UnitPrice > 0:
		unitPrice = *product.UnitPrice
	}

	item.UnitPrice = unitPrice
	total := math.RoundToEven(product.Quantity*unitPrice*100) / 100
	item.LineTotal = &total
	item.Formula = ""
}
