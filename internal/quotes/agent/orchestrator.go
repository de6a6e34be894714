// Package agent drives the tool-calling resolution loop over the pricing
// components, with a deterministic fallback that guarantees a complete answer
// when the language model path fails.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"cotizador_backend/internal/catalog/repository"
	"cotizador_backend/platform/logger"
)

// maxRounds bounds the number of model turns per orchestration run. Exhausting
// it forces the deterministic fallback; it is the loop's only cancellation
// mechanism besides the caller's context.
const maxRounds = 10

// LLM is the completion provider contract, satisfied by the moonshot adapter.
type LLM interface {
	Name() string
	GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error]
}

// runState is the orchestration state machine. Modeling the loop as explicit
// states keeps the bounded-termination guarantee testable.
type runState int

const (
	stateAwaitingModelTurn runState = iota
	stateExecutingTools
	stateFinalCandidate
	stateDone
	stateFallback
)

func (s runState) String() string {
	switch s {
	case stateAwaitingModelTurn:
		return "awaiting_model_turn"
	case stateExecutingTools:
		return "executing_tools"
	case stateFinalCandidate:
		return "final_candidate"
	case stateDone:
		return "done"
	case stateFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Orchestrator resolves a batch of requested products against the catalog.
type Orchestrator struct {
	llm   LLM
	tools *ToolExecutor
	log   *logger.Logger
}

// New creates an orchestrator. A nil llm disables the model path entirely;
// every run then goes straight to the deterministic pipeline.
func New(llm LLM, tools *ToolExecutor, log *logger.Logger) *Orchestrator {
	return &Orchestrator{llm: llm, tools: tools, log: log}
}

// Orchestrate resolves and prices every requested product. It always returns
// one item per input product in input order; model failures of any kind
// degrade to the fallback pipeline instead of surfacing as errors.
func (o *Orchestrator) Orchestrate(ctx context.Context, products []ProductRequest, scope repository.Scope, contextNote string) (*Result, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return &Result{Status: "success", Items: []ResolvedItem{}}, nil
	}

	log := o.log.WithTenant(scope.Key())

	if o.llm != nil {
		if result := o.runModelLoop(ctx, products, scope, contextNote, log); result != nil {
			return result, nil
		}
	}

	log.Info("orchestration degraded to deterministic fallback", "products", len(products))
	return o.fallback(ctx, products, scope), nil
}

// runModelLoop drives the state machine against the language model. It
// returns nil whenever the run must degrade to the fallback.
func (o *Orchestrator) runModelLoop(ctx context.Context, products []ProductRequest, scope repository.Scope, contextNote string, log *logger.Logger) *Result {
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: buildBatchPrompt(products, scope, contextNote)}},
	}}

	state := stateAwaitingModelTurn
	for round := 1; round <= maxRounds; round++ {
		resp, err := o.completeOnce(ctx, contents)
		if err != nil {
			log.Warn("model turn failed", "round", round, "error", err)
			return nil
		}

		calls, text := splitModelParts(resp.Content)
		log.ModelTurn(round, len(calls), len(calls) == 0)

		if len(calls) > 0 {
			state = stateExecutingTools
			log.Debug("state transition", "state", state.String(), "tool_calls", len(calls))

			contents = append(contents, resp.Content)
			responseParts := make([]*genai.Part, 0, len(calls))
			for _, call := range calls {
				payload := o.tools.Execute(ctx, scope, call.Name, call.Args)
				responseParts = append(responseParts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       call.ID,
						Name:     call.Name,
						Response: payload,
					},
				})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: responseParts})

			state = stateAwaitingModelTurn
			continue
		}

		state = stateFinalCandidate
		log.Debug("state transition", "state", state.String())

		if result := parseFinalAnswer(text, len(products)); result != nil {
			state = stateDone
			log.Debug("state transition", "state", state.String())
			return result
		}

		state = stateFallback
		log.Debug("state transition", "state", state.String(), "reason", "unparseable final answer")
		return nil
	}

	state = stateFallback
	log.Debug("state transition", "state", state.String(), "reason", "round budget exhausted")
	return nil
}

// completeOnce performs one non-streaming model call at temperature 0.
func (o *Orchestrator) completeOnce(ctx context.Context, contents []*genai.Content) (*model.LLMResponse, error) {
	temperature := float32(0)
	req := &model.LLMRequest{
		Contents: contents,
		Config: &genai.GenerateContentConfig{
			Temperature: &temperature,
			Tools:       []*genai.Tool{{FunctionDeclarations: o.tools.Declarations()}},
		},
	}

	for resp, err := range o.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return nil, err
		}
		if resp == nil || resp.Content == nil {
			return nil, fmt.Errorf("model returned empty response")
		}
		return resp, nil
	}

	return nil, fmt.Errorf("model yielded no response")
}

// splitModelParts separates tool calls from plain text in a model turn.
func splitModelParts(content *genai.Content) ([]*genai.FunctionCall, string) {
	var calls []*genai.FunctionCall
	var textBuilder strings.Builder
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
			continue
		}
		if strings.TrimSpace(part.Text) != "" {
			if textBuilder.Len() > 0 {
				textBuilder.WriteString("\n")
			}
			textBuilder.WriteString(part.Text)
		}
	}
	return calls, strings.TrimSpace(textBuilder.String())
}

// parseFinalAnswer validates the model's plain-content answer. It must be a
// JSON object with status "success" and an items array carrying one entry per
// input product; anything else sends the run to the fallback.
func parseFinalAnswer(text string, productCount int) *Result {
	raw := stripJSONFence(text)
	if raw == "" {
		return nil
	}

	var envelope struct {
		Status  string          `json:"status"`
		Items   json.RawMessage `json:"items"`
		Summary *Summary        `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil
	}
	if envelope.Status != "success" || len(envelope.Items) == 0 {
		return nil
	}

	var items []ResolvedItem
	if err := json.Unmarshal(envelope.Items, &items); err != nil {
		return nil
	}
	if len(items) != productCount {
		return nil
	}

	result := &Result{Status: "success", Items: items}
	if envelope.Summary != nil {
		result.Summary = *envelope.Summary
	} else {
		result.Summary = summarize(items)
	}
	return result
}

// stripJSONFence tolerates answers wrapped in a markdown code fence.
func stripJSONFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// summarize derives the run summary from resolved items.
func summarize(items []ResolvedItem) Summary {
	var s Summary
	var subtotal float64
	for _, item := range items {
		if item.Matched {
			s.Matched++
		}
		if item.RequiresClarification {
			s.Clarifications++
		}
		if item.LineTotal != nil {
			subtotal += *item.LineTotal
		}
	}
	s.Subtotal = math.RoundToEven(subtotal*100) / 100
	return s
}
