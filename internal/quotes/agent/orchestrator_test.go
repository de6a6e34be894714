package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"cotizador_backend/internal/catalog/repository"
	"cotizador_backend/internal/matching"
	"cotizador_backend/platform/apperr"
	"cotizador_backend/platform/logger"
)

// scriptedLLM replays a fixed sequence of model turns. When the script runs
// out it keeps replaying the last turn, which makes budget-exhaustion tests
// trivial to express.
type scriptedLLM struct {
	turns    []*model.LLMResponse
	errs     []error
	calls    int
	requests []*model.LLMRequest
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	idx := s.calls
	s.calls++
	s.requests = append(s.requests, req)
	return func(yield func(*model.LLMResponse, error) bool) {
		if idx < len(s.errs) && s.errs[idx] != nil {
			yield(nil, s.errs[idx])
			return
		}
		if len(s.turns) == 0 {
			yield(nil, errors.New("empty script"))
			return
		}
		if idx >= len(s.turns) {
			idx = len(s.turns) - 1
		}
		yield(s.turns[idx], nil)
	}
}

func textTurn(text string) *model.LLMResponse {
	return &model.LLMResponse{Content: &genai.Content{
		Role:  genai.RoleModel,
		Parts: []*genai.Part{genai.NewPartFromText(text)},
	}}
}

func callTurn(name string, args map[string]any) *model.LLMResponse {
	return &model.LLMResponse{Content: &genai.Content{
		Role: genai.RoleModel,
		Parts: []*genai.Part{{
			FunctionCall: &genai.FunctionCall{ID: "call-1", Name: name, Args: args},
		}},
	}}
}

func newTestOrchestrator(llm LLM, searcher CatalogSearcher) *Orchestrator {
	return New(llm, NewToolExecutor(searcher, logger.New("test")), logger.New("test"))
}

func singleProduct() []ProductRequest {
	return []ProductRequest{{Name: "cemento gris", Quantity: 20, Unit: "unidades"}}
}

const finalAnswerOneItem = `{"status": "success", "items": [{"requested_name": "cemento gris", "matched": true, "catalog_name": "cemento gris", "match_type": "exact", "confidence": 1.0, "quantity": 20, "unit": "unit", "pricing_unit": "unit", "unit_price": 14, "line_total": 28.0, "formula": "(20.0 / 10.0) * 14.0", "requires_clarification": false}]}`

func TestOrchestrate_ModelFinalAnswer(t *testing.T) {
	llm := &scriptedLLM{turns: []*model.LLMResponse{textTurn(finalAnswerOneItem)}}
	o := newTestOrchestrator(llm, &fakeSearcher{})

	result, err := o.Orchestrate(context.Background(), singleProduct(), toolScope(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("expected success, got %q", result.Status)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	item := result.Items[0]
	if !item.Matched || item.LineTotal == nil || *item.LineTotal != 28.0 {
		t.Fatalf("unexpected item %+v", item)
	}
	// No summary in the payload: derived from the items.
	if result.Summary.Matched != 1 || result.Summary.Subtotal != 28.0 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
	if llm.calls != 1 {
		t.Fatalf("expected a single model turn, got %d", llm.calls)
	}
}

func TestOrchestrate_FencedAnswerIsAccepted(t *testing.T) {
	llm := &scriptedLLM{turns: []*model.LLMResponse{
		textTurn("```json\n" + finalAnswerOneItem + "\n```"),
	}}
	o := newTestOrchestrator(llm, &fakeSearcher{})

	result, err := o.Orchestrate(context.Background(), singleProduct(), toolScope(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("expected success, got %q", result.Status)
	}
}

func TestOrchestrate_ToolRoundThenFinalAnswer(t *testing.T) {
	searcher := &fakeSearcher{candidates: map[string]matching.Candidate{
		"cemento gris": cementCandidate(),
	}}
	llm := &scriptedLLM{turns: []*model.LLMResponse{
		callTurn(ToolSearchCatalogVariants, map[string]any{"product_name": "cemento gris"}),
		textTurn(finalAnswerOneItem),
	}}
	o := newTestOrchestrator(llm, searcher)

	result, err := o.Orchestrate(context.Background(), singleProduct(), toolScope(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("expected success, got %q", result.Status)
	}
	if searcher.searches != 1 {
		t.Fatalf("expected the tool call to reach the searcher, got %d searches", searcher.searches)
	}
	if llm.calls != 2 {
		t.Fatalf("expected 2 model turns, got %d", llm.calls)
	}

	// The second request must carry the whole exchange: prompt, model call,
	// tool response.
	second := llm.requests[1]
	if len(second.Contents) != 3 {
		t.Fatalf("expected 3 conversation entries, got %d", len(second.Contents))
	}
	toolMsg := second.Contents[2]
	if toolMsg.Parts[0].FunctionResponse == nil {
		t.Fatal("expected a function response part in the follow-up turn")
	}
	if toolMsg.Parts[0].FunctionResponse.Name != ToolSearchCatalogVariants {
		t.Fatalf("unexpected function response name %q", toolMsg.Parts[0].FunctionResponse.Name)
	}
}

func TestOrchestrate_UnparseableAnswerFallsBack(t *testing.T) {
	llm := &scriptedLLM{turns: []*model.LLMResponse{textTurn("I could not find anything useful.")}}
	o := newTestOrchestrator(llm, &fakeSearcher{})

	result, err := o.Orchestrate(context.Background(), singleProduct(), toolScope(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "fallback" {
		t.Fatalf("expected fallback, got %q", result.Status)
	}
	if len(result.Items) != 1 {
		t.Fatalf("fallback must keep one item per product, got %d", len(result.Items))
	}
}

func TestOrchestrate_ItemCountMismatchFallsBack(t *testing.T) {
	// Two products in, one item out: the answer must be rejected.
	products := []ProductRequest{
		{Name: "cemento gris", Quantity: 20, Unit: "unidades"},
		{Name: "arena fina", Quantity: 3, Unit: "kg"},
	}
	llm := &scriptedLLM{turns: []*model.LLMResponse{textTurn(finalAnswerOneItem)}}
	o := newTestOrchestrator(llm, &fakeSearcher{})

	result, err := o.Orchestrate(context.Background(), products, toolScope(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "fallback" {
		t.Fatalf("expected fallback, got %q", result.Status)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
}

func TestOrchestrate_ModelErrorFallsBack(t *testing.T) {
	llm := &scriptedLLM{errs: []error{errors.New("upstream 500")}}
	o := newTestOrchestrator(llm, &fakeSearcher{})

	result, err := o.Orchestrate(context.Background(), singleProduct(), toolScope(), "")
	if err != nil {
		t.Fatalf("model failure must not surface: %v", err)
	}
	if result.Status != "fallback" {
		t.Fatalf("expected fallback, got %q", result.Status)
	}
}

func TestOrchestrate_RoundBudgetBoundsTheLoop(t *testing.T) {
	// A model that never stops calling tools is cut off after maxRounds.
	llm := &scriptedLLM{turns: []*model.LLMResponse{
		callTurn(ToolSearchCatalogVariants, map[string]any{"product_name": "cemento gris"}),
	}}
	o := newTestOrchestrator(llm, &fakeSearcher{})

	result, err := o.Orchestrate(context.Background(), singleProduct(), toolScope(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "fallback" {
		t.Fatalf("expected fallback after budget exhaustion, got %q", result.Status)
	}
	if llm.calls != maxRounds {
		t.Fatalf("expected exactly %d model turns, got %d", maxRounds, llm.calls)
	}
}

func TestOrchestrate_NilLLMRunsDeterministically(t *testing.T) {
	searcher := &fakeSearcher{candidates: map[string]matching.Candidate{
		"cemento gris": cementCandidate(),
	}}
	o := newTestOrchestrator(nil, searcher)

	result, err := o.Orchestrate(context.Background(), singleProduct(), toolScope(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "fallback" {
		t.Fatalf("expected fallback, got %q", result.Status)
	}
	item := result.Items[0]
	if !item.Matched || item.MatchType != "exact" {
		t.Fatalf("expected a confirmed exact match, got %+v", item)
	}
	// 20 units over pack x10 at 14: 2 packs, 28.0.
	if item.LineTotal == nil || *item.LineTotal != 28.0 {
		t.Fatalf("expected line total 28.0, got %+v", item.LineTotal)
	}
	if item.Formula != "(20.0 / 10.0) * 14.0" {
		t.Fatalf("unexpected formula %q", item.Formula)
	}
	if result.Summary.Subtotal != 28.0 || result.Summary.Matched != 1 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
}

func TestOrchestrate_FallbackKeepsUnmatchedProducts(t *testing.T) {
	o := newTestOrchestrator(nil, &fakeSearcher{})

	price := 9.5
	products := []ProductRequest{{Name: "producto inexistente", Quantity: 2, Unit: "", UnitPrice: &price}}
	result, err := o.Orchestrate(context.Background(), products, toolScope(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item := result.Items[0]
	if item.Matched {
		t.Fatalf("expected unmatched item, got %+v", item)
	}
	if !item.RequiresClarification {
		t.Fatal("expected requires_clarification")
	}
	// Naive pricing falls back to the price quoted in the request.
	if item.LineTotal == nil || *item.LineTotal != 19.0 {
		t.Fatalf("expected naive total 19.0, got %+v", item.LineTotal)
	}
}

func TestOrchestrate_FallbackIsIdempotent(t *testing.T) {
	searcher := &fakeSearcher{candidates: map[string]matching.Candidate{
		"cemento gris": cementCandidate(),
	}}
	o := newTestOrchestrator(nil, searcher)

	first, err := o.Orchestrate(context.Background(), singleProduct(), toolScope(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := o.Orchestrate(context.Background(), singleProduct(), toolScope(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("fallback not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestOrchestrate_PreservesInputOrder(t *testing.T) {
	searcher := &fakeSearcher{candidates: map[string]matching.Candidate{}}
	var products []ProductRequest
	for i := 0; i < 5; i++ {
		products = append(products, ProductRequest{Name: fmt.Sprintf("producto %d", i), Quantity: 1})
	}
	o := newTestOrchestrator(nil, searcher)

	result, err := o.Orchestrate(context.Background(), products, toolScope(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != len(products) {
		t.Fatalf("expected %d items, got %d", len(products), len(result.Items))
	}
	for i, item := range result.Items {
		if item.RequestedName != products[i].Name {
			t.Fatalf("item %d out of order: %q", i, item.RequestedName)
		}
	}
}

func TestOrchestrate_EmptyBatch(t *testing.T) {
	llm := &scriptedLLM{}
	o := newTestOrchestrator(llm, &fakeSearcher{})

	result, err := o.Orchestrate(context.Background(), nil, toolScope(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "success" || len(result.Items) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if llm.calls != 0 {
		t.Fatalf("empty batch must not consult the model, got %d calls", llm.calls)
	}
}

func TestOrchestrate_RejectsInvalidScope(t *testing.T) {
	o := newTestOrchestrator(nil, &fakeSearcher{})

	_, err := o.Orchestrate(context.Background(), singleProduct(), repository.Scope{}, "")
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for empty scope, got %v", err)
	}
}
