// Package router decides whether an incoming completion request should
// be forwarded as-is to the upstream provider or handled by the
// recursive exploration engine.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/colliery-io/muninn/internal/rlm"
)

// Strategy selects how the router resolves requests that aren't
// already decided by a text trigger or the json-level recursive flag.
type Strategy string

const (
	StrategyAlwaysPassthrough Strategy = "always-passthrough"
	StrategyAlwaysRlm         Strategy = "always-rlm"
	StrategyLlm               Strategy = "llm"

	// StrategyHeuristic and StrategyHybrid are accepted as forward-compatible
	// configuration values. Neither implements an actual keyword/length
	// heuristic; both resolve to the same dispatch as StrategyLlm.
	StrategyHeuristic Strategy = "heuristic"
	StrategyHybrid    Strategy = "hybrid"
)

// RouteType discriminates RouteDecision's tagged union.
type RouteType string

const (
	RoutePassthrough    RouteType = "passthrough"
	RouteRlm            RouteType = "rlm"
	RouteRlmWithBackend RouteType = "rlm_with_backend"
)

// RouteDecision is the router's output for one request.
type RouteDecision struct {
	Route   RouteType
	Reason  string
	Backend rlm.LLMBackend // only set for RouteRlmWithBackend
}

func decidePassthrough(reason string) RouteDecision {
	return RouteDecision{Route: RoutePassthrough, Reason: reason}
}

func decideRlm(reason string) RouteDecision {
	return RouteDecision{Route: RouteRlm, Reason: reason}
}

// Trigger markers a client can put at the start of the last user
// message to bypass strategy-based routing entirely.
const (
	passthroughTrigger = "@muninn passthrough"
	exploreTrigger     = "@muninn explore"
)

// Router dispatches a request to passthrough or RLM processing.
type Router struct {
	strategy      Strategy
	routerBackend rlm.LLMBackend
}

func New(strategy Strategy) *Router {
	return &Router{strategy: strategy}
}

func (r *Router) WithRouterBackend(backend rlm.LLMBackend) *Router {
	r.routerBackend = backend
	return r
}

// Route decides where request should go. The caller is expected to have
// already checked request.Muninn.Recursive==true as an explicit
// client opt-in that bypasses the router entirely.
func (r *Router) Route(ctx context.Context, request rlm.CompletionRequest) RouteDecision {
	input, ok := extractRoutingInput(request)
	if !ok {
		return decidePassthrough("empty or missing routing input")
	}

	if shouldBypass(request) {
		return decidePassthrough("internal/health-check request shape")
	}

	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, passthroughTrigger) {
		return decidePassthrough("explicit @muninn passthrough trigger")
	}
	if strings.HasPrefix(trimmed, exploreTrigger) {
		return decideRlm("explicit @muninn explore trigger")
	}

	switch r.strategy {
	case StrategyAlwaysPassthrough:
		return decidePassthrough("strategy: always-passthrough")
	case StrategyAlwaysRlm:
		return decideRlm("strategy: always-rlm")
	case StrategyLlm, StrategyHeuristic, StrategyHybrid:
		return r.routeViaLLM(ctx, input)
	default:
		slog.Warn("unrecognized router strategy, defaulting to passthrough", "strategy", r.strategy)
		return decidePassthrough("unrecognized strategy")
	}
}

// extractRoutingInput pulls the last user message's text out of the
// request. Requests with no user message, or whose last user message
// carries only structured blocks with no text, have no routing input.
func extractRoutingInput(request rlm.CompletionRequest) (string, bool) {
	for i := len(request.Messages) - 1; i >= 0; i-- {
		msg := request.Messages[i]
		if msg.Role != rlm.RoleUser {
			continue
		}
		text := msg.Content.ToText()
		if strings.TrimSpace(text) == "" {
			return "", false
		}
		return text, true
	}
	return "", false
}

// shouldBypass recognizes internal/health-check request shapes that
// should never be routed to RLM regardless of content: a single tiny
// message with a trivial max_tokens, the conventional shape of a
// liveness probe some clients send through the completion endpoint.
func shouldBypass(request rlm.CompletionRequest) bool {
	return request.MaxTokens <= 1 && len(request.Messages) <= 1
}

var routeDecisionTool = rlm.ToolDefinition{
	Name:        "route_decision",
	Description: "Report the routing decision for this request: whether it should be handled by direct passthrough to the upstream model, or by recursive exploration of the local codebase.",
	InputSchema: []byte(`{
		"type": "object",
		"properties": {
			"route": {
				"type": "string",
				"enum": ["passthrough", "rlm"],
				"description": "passthrough to forward the request unchanged, rlm to run recursive exploration first"
			},
			"reason": {
				"type": "string",
				"description": "brief justification for the decision"
			}
		},
		"required": ["route", "reason"]
	}`),
}

const routerSystemPrompt = `You are a routing classifier for a coding assistant proxy. Given the user's most recent message, decide whether it needs recursive exploration of the local codebase (RLM) or can be answered directly by a language model with no codebase context (passthrough).

Choose rlm when the message asks about specific code, files, architecture, or behavior of the project the user is working in. Choose passthrough for general questions, conversation, or requests that don't reference the local codebase.

You MUST call the route_decision tool exactly once with your decision.`

type routeDecisionArgs struct {
	Route  string `json:"route"`
	Reason string `json:"reason"`
}

// routeViaLLM consults the configured router backend with a forced
// tool call. Any failure - no backend configured, a backend error, or
// a response that doesn't carry a usable route_decision call -
// defaults to passthrough, since failing open to the cheaper path
// never strands a request without a response.
func (r *Router) routeViaLLM(ctx context.Context, input string) RouteDecision {
	if r.routerBackend == nil {
		return decidePassthrough("llm strategy configured but no router backend available")
	}

	request := rlm.CompletionRequest{
		Model:      "router",
		Messages:   []rlm.Message{rlm.UserMessage(input)},
		MaxTokens:  256,
		System:     rlm.NewSystemText(routerSystemPrompt),
		Tools:      []rlm.ToolDefinition{routeDecisionTool},
		ToolChoice: toolChoiceSpecific(),
	}

	response, err := r.routerBackend.Complete(ctx, request)
	if err != nil {
		slog.Warn("router llm call failed, defaulting to passthrough", "error", err)
		return decidePassthrough("router llm error: " + err.Error())
	}

	for _, use := range response.ToolUses() {
		if use.Name != "route_decision" {
			continue
		}
		var args routeDecisionArgs
		if err := json.Unmarshal(use.Input, &args); err != nil {
			continue
		}
		switch args.Route {
		case "rlm":
			return decideRlm("router llm: " + args.Reason)
		case "passthrough":
			return decidePassthrough("router llm: " + args.Reason)
		}
	}

	return decidePassthrough("router llm did not return a usable route_decision")
}

func toolChoiceSpecific() *rlm.ToolChoice {
	choice := rlm.ToolChoiceSpecific("route_decision")
	return &choice
}
