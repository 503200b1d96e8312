package rlm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// EngineDeps collects the dependencies a RecursiveEngine needs: the
// backend it drives completions through and the tool environment it
// dispatches tool_use calls to.
type EngineDeps struct {
	Backend LLMBackend
	Tools   ToolEnvironment
}

func NewEngineDeps(backend LLMBackend, tools ToolEnvironment) EngineDeps {
	return EngineDeps{Backend: backend, Tools: tools}
}

// EngineConfig controls how a RecursiveEngine prepares a recursive
// request before entering the exploration loop.
type EngineConfig struct {
	Budget               BudgetConfig
	WorkDir              string
	Temperature          *float32
	InjectSystemPrompt   bool
}

func DefaultEngineConfig() EngineConfig {
	temp := float32(0.1)
	return EngineConfig{
		Budget:             DefaultBudgetConfig(),
		Temperature:        &temp,
		InjectSystemPrompt: true,
	}
}

func (c EngineConfig) WithBudget(budget BudgetConfig) EngineConfig {
	c.Budget = budget
	return c
}

func (c EngineConfig) WithWorkDir(path string) EngineConfig {
	c.WorkDir = path
	return c
}

func (c EngineConfig) WithTemperature(temp float32) EngineConfig {
	c.Temperature = &temp
	return c
}

func (c EngineConfig) WithoutTemperature() EngineConfig {
	c.Temperature = nil
	return c
}

// RecursiveEngine drives the bounded tool-using exploration loop: it
// turns a single "recursive" completion request into a sequence of
// backend completions interleaved with tool execution, until the model
// calls final_answer, stops on its own, or a budget limit forces
// termination.
type RecursiveEngine struct {
	backend       LLMBackend
	tools         ToolEnvironment
	toolExecutor  *ToolExecutor
	defaultBudget BudgetConfig
	workDir       string
	temperature   *float32
	injectSystem  bool
}

func NewRecursiveEngine(deps EngineDeps, config EngineConfig) *RecursiveEngine {
	return &RecursiveEngine{
		backend:       deps.Backend,
		tools:         deps.Tools,
		toolExecutor:  NewToolExecutor(deps.Tools),
		defaultBudget: config.Budget,
		workDir:       config.WorkDir,
		temperature:   config.Temperature,
		injectSystem:  config.InjectSystemPrompt,
	}
}

// NewRecursiveEngineWithDeps builds an engine with default configuration.
func NewRecursiveEngineWithDeps(deps EngineDeps) *RecursiveEngine {
	return NewRecursiveEngine(deps, DefaultEngineConfig())
}

// NewRecursiveEngineFromComponents is a convenience constructor for
// callers that don't need to customize EngineConfig.
func NewRecursiveEngineFromComponents(backend LLMBackend, tools ToolEnvironment) *RecursiveEngine {
	return NewRecursiveEngineWithDeps(NewEngineDeps(backend, tools))
}

// IsRecursive reports whether request opted into RLM interception via
// its muninn control block.
func IsRecursive(request CompletionRequest) bool {
	return request.Muninn != nil && request.Muninn.Recursive
}

// Complete runs request through the exploration loop. A request marked
// recursive is first prepared for exploration (history truncated, system
// prompt and tools replaced); any other request enters the loop as sent.
func (e *RecursiveEngine) Complete(ctx context.Context, request CompletionRequest) (CompletionResponse, error) {
	if IsRecursive(request) {
		request = e.prepareRecursiveRequest(request)
	}

	explorationCtx := NewExplorationContext(request, e.defaultBudget)
	return e.runExplorationLoop(ctx, explorationCtx)
}

// rlmContextUserMessages bounds how many of the caller's user turns
// survive into the RLM's own conversation history. Smaller backends
// (Groq/Qwen) have far less context budget than Claude, so the engine
// trims aggressively rather than forwarding the full agent transcript.
const rlmContextUserMessages = 3

func (e *RecursiveEngine) prepareRecursiveRequest(request CompletionRequest) CompletionRequest {
	tools := e.tools.AvailableTools()

	originalCount := len(request.Messages)
	request.Messages = truncateToLastNUserMessages(request.Messages, rlmContextUserMessages)
	if len(request.Messages) < originalCount {
		slog.Debug("truncated conversation for rlm",
			"original_count", originalCount,
			"truncated_to", len(request.Messages))
	}

	// Always replace the system prompt with the RLM's own exploration
	// prompt. The caller's system prompt (e.g. Claude Code's, describing
	// Bash/Read/Edit/Write/Glob/Grep) would otherwise confuse the model
	// about which tools it actually has.
	if e.backend.SupportsNativeTools() {
		system := CoreRLMBehavior
		if tree, ok := GenerateDirTree(e.workDir); ok {
			system = system + "\n\n" + tree
		}
		request.System = &SystemPrompt{Text: system}
		request.Tools = tools
	} else {
		var b strings.Builder
		b.WriteString(CoreRLMBehavior)
		toolDefs := e.backend.FormatToolDefinitions(tools)
		if toolDefs != "" {
			b.WriteString("\n\n")
			b.WriteString(toolDefs)
		}
		if instructions := e.backend.ToolCallingInstructions(); instructions != "" {
			b.WriteString("\n")
			b.WriteString(instructions)
		}
		request.System = &SystemPrompt{Text: b.String()}
	}

	if request.Temperature == nil {
		defaultTemp := float32(0.1)
		request.Temperature = &defaultTemp
	}
	return request
}

func (e *RecursiveEngine) runExplorationLoop(ctx context.Context, ec *ExplorationContext) (CompletionResponse, error) {
	for {
		if err := ec.CheckBudget(); err != nil {
			e.logCompletion(ec, "budget_exceeded", false)
			return CompletionResponse{}, err
		}

		if ec.IsLastTurn() {
			ec.InjectLastTurnWarning()
		}

		iterRequest := ec.BuildRequest()
		start := time.Now()
		response, err := e.backend.Complete(ctx, iterRequest)
		if err != nil {
			e.logCompletion(ec, "llm_error", false)
			return CompletionResponse{}, err
		}
		latency := time.Since(start)

		slog.Debug("rlm iteration",
			"depth", ec.Depth(),
			"is_last_turn", ec.IsLastTurn(),
			"message_count", len(iterRequest.Messages),
			"llm_latency_ms", latency.Milliseconds(),
			"input_tokens", response.Usage.InputTokens,
			"output_tokens", response.Usage.OutputTokens,
			"stop_reason", response.StopReason)

		ec.AddUsage(response.Usage)

		if answer, ok := extractFinalPattern(response); ok {
			e.logCompletion(ec, "final_pattern", true)
			return ec.FinalizeWithAnswer(response, answer), nil
		}

		stopReason := StopEndTurn
		if response.StopReason != nil {
			stopReason = *response.StopReason
		}

		switch stopReason {
		case StopEndTurn:
			e.logCompletion(ec, "end_turn", false)
			return ec.Finalize(response), nil

		case StopToolUse:
			if answer, ok := extractFinalAnswerTool(response); ok {
				e.logCompletion(ec, "final_answer_tool", true)
				return ec.FinalizeWithAnswer(response, answer), nil
			}
			if ec.WouldExceedDepth() {
				msg := fmt.Sprintf("[Exploration limit reached]\nModel made %d tool calls across %d iterations.",
					ec.ToolCallCount(), ec.Depth())
				e.logCompletion(ec, "forced_termination", true)
				return ec.FinalizeWithAnswer(response, msg), nil
			}
			results, err := e.toolExecutor.ExecuteTools(ctx, response)
			if err != nil {
				e.logCompletion(ec, "tool_error", false)
				return CompletionResponse{}, err
			}
			ec.AddToolInteraction(response, results)
			ec.IncrementDepth()

		case StopMaxTokens:
			e.logCompletion(ec, "max_tokens", false)
			return ec.Finalize(response), nil

		case StopStopSequence:
			e.logCompletion(ec, "stop_sequence", false)
			return ec.Finalize(response), nil

		default:
			e.logCompletion(ec, "end_turn", false)
			return ec.Finalize(response), nil
		}
	}
}

func (e *RecursiveEngine) logCompletion(ec *ExplorationContext, reason string, hasFinal bool) {
	slog.Debug("rlm completion",
		"termination_reason", reason,
		"depth_reached", ec.Depth(),
		"tool_calls", ec.ToolCallCount(),
		"tokens_used", ec.TokensUsed(),
		"duration_ms", ec.Elapsed().Milliseconds(),
		"has_final_answer", hasFinal)
}

var finalPatternRegexp = regexp.MustCompile(`(?m)^FINAL\(["']?([\s\S]+?)["']?\)$`)

// extractFinalPattern recognizes a bare FINAL("...") marker in the
// response text, for backends that can't be relied on to emit a
// final_answer tool call reliably.
func extractFinalPattern(response CompletionResponse) (string, bool) {
	text := response.Text()
	if text == "" {
		return "", false
	}
	match := finalPatternRegexp.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	answer := strings.TrimSpace(match[1])
	if answer == "" {
		return "", false
	}
	return answer, true
}

func extractFinalAnswerTool(response CompletionResponse) (string, bool) {
	for _, use := range response.ToolUses() {
		if use.Name != "final_answer" {
			continue
		}
		var args struct {
			Answer string `json:"answer"`
		}
		if err := json.Unmarshal(use.Input, &args); err != nil {
			continue
		}
		if args.Answer == "" {
			continue
		}
		return args.Answer, true
	}
	return "", false
}

// truncateToLastNUserMessages keeps only the last n user messages and
// everything after the first of them, preserving intervening
// assistant/tool turns while bounding total message count.
func truncateToLastNUserMessages(messages []Message, n int) []Message {
	if n == 0 {
		return nil
	}

	var userIndices []int
	for i, m := range messages {
		if m.Role == RoleUser {
			userIndices = append(userIndices, i)
		}
	}

	if len(userIndices) <= n {
		return messages
	}

	startIdx := userIndices[len(userIndices)-n]
	return append([]Message(nil), messages[startIdx:]...)
}
