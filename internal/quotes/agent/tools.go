package agent

import (
	"context"
	"strconv"

	"google.golang.org/genai"

	"cotizador_backend/internal/catalog/repository"
	"cotizador_backend/internal/matching"
	"cotizador_backend/internal/pricing"
	"cotizador_backend/platform/logger"
)

// Tool names exposed to the language model. The executor dispatches over this
// closed set; anything else yields a structured tool error.
const (
	ToolSearchCatalogVariants = "search_catalog_variants_tool"
	ToolResolveUnitPackaging  = "resolve_unit_packaging_tool"
	ToolCalculateLinePrice    = "calculate_line_price_tool"
	ToolVerifyPricingTotals   = "verify_pricing_totals_tool"
)

// CatalogSearcher is the slice of the matching cascade the tools need.
type CatalogSearcher interface {
	Search(ctx context.Context, query string, scope repository.Scope) (*matching.Candidate, error)
	SearchVariants(ctx context.Context, query string, scope repository.Scope, maxVariants int) ([]matching.Candidate, error)
}

// ToolExecutor executes the model's tool calls against the real components.
type ToolExecutor struct {
	searcher CatalogSearcher
	log      *logger.Logger
}

// NewToolExecutor creates the tool executor.
func NewToolExecutor(searcher CatalogSearcher, log *logger.Logger) *ToolExecutor {
	return &ToolExecutor{searcher: searcher, log: log}
}

// Execute runs one tool call and returns its JSON-shaped payload. Errors are
// always reported inside the payload so the model can react; nothing here
// aborts the orchestration.
func (e *ToolExecutor) Execute(ctx context.Context, scope repository.Scope, name string, args map[string]any) map[string]any {
	switch name {
	case ToolSearchCatalogVariants:
		return e.searchCatalogVariants(ctx, scope, args)
	case ToolResolveUnitPackaging:
		return e.resolveUnitPackaging(args)
	case ToolCalculateLinePrice:
		return e.calculateLinePrice(args)
	case ToolVerifyPricingTotals:
		return e.verifyPricingTotals(args)
	default:
		e.log.Warn("unknown tool requested", "tool", name)
		return map[string]any{"status": "error", "error": "unknown tool: " + name}
	}
}

func (e *ToolExecutor) searchCatalogVariants(ctx context.Context, scope repository.Scope, args map[string]any) map[string]any {
	productName, ok := argString(args, "product_name")
	if !ok || productName == "" {
		return toolError("product_name is required")
	}
	maxVariants := argIntDefault(args, "max_variants", matching.DefaultMaxVariants)

	variants, err := e.searcher.SearchVariants(ctx, productName, scope, maxVariants)
	if err != nil {
		return toolError(err.Error())
	}

	payload := make([]map[string]any, 0, len(variants))
	for _, v := range variants {
		payload = append(payload, map[string]any{
			"id":           v.Product.ID.String(),
			"product_name": v.Product.Name,
			"unit":         v.Product.Unit,
			"unit_price":   v.Product.UnitPrice,
			"unit_cost":    v.Product.UnitCost,
			"confidence":   v.Confidence,
			"match_type":   string(v.MatchType),
		})
	}

	return map[string]any{"status": "success", "variants": payload}
}

func (e *ToolExecutor) resolveUnitPackaging(args map[string]any) map[string]any {
	qty, ok := argFloat(args, "requested_quantity")
	if !ok {
		return toolError("requested_quantity is required")
	}
	requestedUnit, _ := argString(args, "requested_unit")
	catalogUnit, _ := argString(args, "catalog_unit")

	res, err := pricing.Resolve(qty, requestedUnit, catalogUnit)
	if err != nil {
		return toolError(err.Error())
	}

	payload := map[string]any{
		"status":                 "success",
		"compatible":             res.Compatible,
		"requires_clarification": res.RequiresClarification,
		"pricing_base_qty":       res.PricingBaseQty,
		"pricing_unit":           res.PricingUnit,
	}
	if res.QuantityInPricingUnit != nil {
		payload["quantity_in_pricing_unit"] = *res.QuantityInPricingUnit
	}
	if res.ConversionFactor != nil {
		payload["conversion_factor"] = *res.ConversionFactor
	}
	if res.Message != "" {
		payload["message"] = res.Message
	}
	return payload
}

func (e *ToolExecutor) calculateLinePrice(args map[string]any) map[string]any {
	qty, ok := argFloat(args, "quantity_in_pricing_unit")
	if !ok {
		return toolError("quantity_in_pricing_unit is required")
	}
	baseQty, ok := argFloat(args, "pricing_base_qty")
	if !ok {
		return toolError("pricing_base_qty is required")
	}
	unitPrice, ok := argFloat(args, "unit_price")
	if !ok {
		return toolError("unit_price is required")
	}
	decimals := argIntDefault(args, "rounding_decimals", pricing.DefaultRoundingDecimals)

	line, err := pricing.Calculate(qty, baseQty, unitPrice, decimals)
	if err != nil {
		return toolError(err.Error())
	}

	return map[string]any{
		"status":               "success",
		"billable_units":       line.BillableUnits,
		"line_total":           line.LineTotal,
		"line_total_raw":       line.LineTotalRaw,
		"effective_unit_price": line.EffectiveUnitPrice,
		"formula":              line.Formula,
	}
}

func (e *ToolExecutor) verifyPricingTotals(args map[string]any) map[string]any {
	rawItems, ok := args["items"].([]any)
	if !ok {
		return toolError("items is required and must be an array")
	}

	items := make([]pricing.VerifyItem, 0, len(rawItems))
	for _, raw := range rawItems {
		var lineTotal *float64
		if entry, ok := raw.(map[string]any); ok {
			if v, ok := argFloat(entry, "line_total"); ok {
				lineTotal = &v
			}
		}
		items = append(items, pricing.VerifyItem{LineTotal: lineTotal})
	}

	summary := pricing.Verify(items, pricing.DefaultTolerance)
	errs := summary.Errors
	if errs == nil {
		errs = []string{}
	}

	return map[string]any{
		"status":      "success",
		"is_valid":    summary.IsValid,
		"errors":      errs,
		"subtotal":    summary.Subtotal,
		"items_count": summary.ItemsCount,
	}
}

func toolError(message string) map[string]any {
	return map[string]any{"status": "error", "error": message}
}

// argString reads a string argument.
func argString(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

// argFloat reads a numeric argument, tolerating the string renditions some
// models produce.
func argFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// argIntDefault reads an integer argument, falling back when missing or
// malformed.
func argIntDefault(args map[string]any, key string, fallback int) int {
	if f, ok := argFloat(args, key); ok {
		return int(f)
	}
	return fallback
}

// Declarations describes the four tools as genai function declarations.
func (e *ToolExecutor) Declarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        ToolSearchCatalogVariants,
			Description: "Searches the tenant's private catalog for products matching a free-text name. Runs exact, fuzzy and semantic stages and returns candidates ordered by confidence.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"product_name": {Type: genai.TypeString, Description: "Free-text product name from the order."},
					"max_variants": {Type: genai.TypeInteger, Description: "Maximum candidates to return (default 5)."},
				},
				Required: []string{"product_name"},
			},
		},
		{
			Name:        ToolResolveUnitPackaging,
			Description: "Reconciles a requested quantity and unit against a catalog pricing unit label, resolving packaging like 'pack x10'. Incompatible unit pairs are flagged for clarification, never guessed.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"requested_quantity": {Type: genai.TypeNumber, Description: "Quantity requested by the customer; must be > 0."},
					"requested_unit":     {Type: genai.TypeString, Description: "Unit as written in the order, e.g. 'unidades' or 'kg'."},
					"catalog_unit":       {Type: genai.TypeString, Description: "The catalog entry's unit label, e.g. 'pack x10'."},
				},
				Required: []string{"requested_quantity", "requested_unit", "catalog_unit"},
			},
		},
		{
			Name:        ToolCalculateLinePrice,
			Description: "Computes an auditable line total from a resolved quantity, the pricing base quantity and the catalog unit price.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"quantity_in_pricing_unit": {Type: genai.TypeNumber},
					"pricing_base_qty":         {Type: genai.TypeNumber},
					"unit_price":               {Type: genai.TypeNumber},
					"rounding_decimals":        {Type: genai.TypeInteger, Description: "Decimal places for the line total (default 2)."},
				},
				Required: []string{"quantity_in_pricing_unit", "pricing_base_qty", "unit_price"},
			},
		},
		{
			Name:        ToolVerifyPricingTotals,
			Description: "Verifies a batch of line totals: sums the valid ones into a subtotal and reports per-line problems without aborting.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"items": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"line_total": {Type: genai.TypeNumber},
							},
						},
					},
				},
				Required: []string{"items"},
			},
		},
	}
}
