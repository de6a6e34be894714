package agent

// ProductRequest is one free-text product mention from an incoming order.
type ProductRequest struct {
	Name      string
	Quantity  float64
	Unit      string
	UnitPrice *float64
	UnitCost  *float64
}

// ResolvedItem is the priced resolution of one requested product. The json
// tags define the wire shape shared by the model's final answer and the
// deterministic fallback.
type ResolvedItem struct {
	RequestedName         string   `json:"requested_name"`
	Matched               bool     `json:"matched"`
	ProductID             string   `json:"product_id,omitempty"`
	CatalogName           string   `json:"catalog_name,omitempty"`
	MatchType             string   `json:"match_type,omitempty"`
	Confidence            float64  `json:"confidence"`
	Quantity              float64  `json:"quantity"`
	Unit                  string   `json:"unit"`
	PricingUnit           string   `json:"pricing_unit,omitempty"`
	UnitPrice             float64  `json:"unit_price"`
	LineTotal             *float64 `json:"line_total,omitempty"`
	Formula               string   `json:"formula,omitempty"`
	RequiresClarification bool     `json:"requires_clarification"`
	Note                  string   `json:"note,omitempty"`
}

// Summary aggregates one orchestration run.
type Summary struct {
	Matched        int     `json:"matched"`
	Clarifications int     `json:"clarifications"`
	Subtotal       float64 `json:"subtotal"`
}

// Result is the outcome of one orchestration run. Status is "success" when
// the model produced the answer and "fallback" when the deterministic path
// did. Items always has exactly one entry per input product, in input order.
type Result struct {
	Status  string         `json:"status"`
	Items   []ResolvedItem `json:"items"`
	Summary Summary        `json:"summary"`
}
