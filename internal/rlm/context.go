package rlm

import "time"

// ExplorationContext tracks conversation state and budget usage across one
// recursive exploration run.
type ExplorationContext struct {
	originalRequest CompletionRequest
	messages        []Message
	budget          *BudgetTracker
}

func NewExplorationContext(request CompletionRequest, budget BudgetConfig) *ExplorationContext {
	messages := make([]Message, len(request.Messages))
	copy(messages, request.Messages)
	return &ExplorationContext{
		originalRequest: request,
		messages:        messages,
		budget:          NewBudgetTracker(budget),
	}
}

// BuildRequest produces the next non-streaming request to send to the
// backend, carrying the original request's model/tools/system prompt but
// the context's accumulated message history and no muninn control block.
func (c *ExplorationContext) BuildRequest() CompletionRequest {
	return CompletionRequest{
		Model:         c.originalRequest.Model,
		Messages:      append([]Message(nil), c.messages...),
		MaxTokens:     c.originalRequest.MaxTokens,
		System:        c.originalRequest.System,
		Tools:         c.originalRequest.Tools,
		ToolChoice:    c.originalRequest.ToolChoice,
		Stream:        false,
		Temperature:   c.originalRequest.Temperature,
		TopP:          c.originalRequest.TopP,
		TopK:          c.originalRequest.TopK,
		StopSequences: c.originalRequest.StopSequences,
		Muninn:        nil,
		Metadata:      c.originalRequest.Metadata,
		Thinking:      nil,
	}
}

func (c *ExplorationContext) CheckBudget() error {
	return c.budget.CheckBudget()
}

func (c *ExplorationContext) AddUsage(usage Usage) {
	c.budget.RecordTokens(uint64(usage.Total()))
}

// AddToolInteraction appends the assistant's tool-use turn and the
// corresponding tool-result turn to the conversation history.
func (c *ExplorationContext) AddToolInteraction(response CompletionResponse, results []ToolResultBlock) {
	c.messages = append(c.messages, AssistantBlocks(response.Content))
	c.messages = append(c.messages, ToolResultsMessage(results))
	c.budget.RecordToolCalls(uint32(len(results)))
}

func (c *ExplorationContext) IncrementDepth()       { c.budget.IncrementDepth() }
func (c *ExplorationContext) Depth() uint32         { return c.budget.Depth() }
func (c *ExplorationContext) ToolCallCount() uint32 { return c.budget.ToolCalls() }
func (c *ExplorationContext) TokensUsed() uint64    { return c.budget.TokensUsed() }
func (c *ExplorationContext) IsLastTurn() bool      { return c.budget.IsLastTurn() }
func (c *ExplorationContext) WouldExceedDepth() bool { return c.budget.WouldExceedDepth() }
func (c *ExplorationContext) Elapsed() time.Duration { return c.budget.Elapsed() }
func (c *ExplorationContext) BudgetConfig() BudgetConfig { return c.budget.Config() }

const lastTurnWarning = "This is your FINAL turn - you have reached the exploration limit.\n\n" +
	"You MUST call `final_answer` NOW with whatever information you have gathered.\n\n" +
	"DO NOT call any other tools. If you call any tool other than `final_answer`, " +
	"the request will fail.\n\n" +
	"Synthesize your findings and provide your best answer based on what you've learned."

// InjectLastTurnWarning appends a user-role warning telling the model this
// is its final allowed turn.
func (c *ExplorationContext) InjectLastTurnWarning() {
	c.messages = append(c.messages, UserMessage(lastTurnWarning))
}

func (c *ExplorationContext) BuildMetadata() ExplorationMetadata {
	return ExplorationMetadata{
		DepthReached: c.budget.Depth(),
		TokensUsed:   c.budget.TokensUsed(),
		ToolCalls:    c.budget.ToolCalls(),
		DurationMs:   uint64(c.budget.Elapsed().Milliseconds()),
	}
}

func (c *ExplorationContext) includeMetadata() bool {
	muninn := c.originalRequest.Muninn
	return muninn == nil || muninn.IncludeMetadata == nil || *muninn.IncludeMetadata
}

// Finalize attaches exploration metadata to response if the caller's
// muninn config requested it (the default).
func (c *ExplorationContext) Finalize(response CompletionResponse) CompletionResponse {
	if c.includeMetadata() {
		meta := c.BuildMetadata()
		response.Muninn = &meta
	}
	return response
}

// FinalizeWithAnswer replaces response's content with the synthesized
// answer text and marks it as a normal end-of-turn completion.
func (c *ExplorationContext) FinalizeWithAnswer(response CompletionResponse, answer string) CompletionResponse {
	response.Content = []ContentBlock{TextBlock(answer)}
	stopReason := StopEndTurn
	response.StopReason = &stopReason
	if c.includeMetadata() {
		meta := c.BuildMetadata()
		response.Muninn = &meta
	}
	return response
}
