package rlm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// StreamEventType discriminates StreamEvent's tagged union.
type StreamEventType string

const (
	EventMessageStart      StreamEventType = "message_start"
	EventContentBlockStart StreamEventType = "content_block_start"
	EventContentBlockDelta StreamEventType = "content_block_delta"
	EventContentBlockStop  StreamEventType = "content_block_stop"
	EventMessageDelta      StreamEventType = "message_delta"
	EventMessageStop       StreamEventType = "message_stop"
	EventPing              StreamEventType = "ping"
	EventError             StreamEventType = "error"
)

// DeltaType discriminates ContentDelta's tagged union.
type DeltaType string

const (
	DeltaText       DeltaType = "text_delta"
	DeltaInputJSON  DeltaType = "input_json_delta"
)

// ContentDelta is an incremental update to a content block during
// streaming.
type ContentDelta struct {
	Type        DeltaType
	Text        string
	PartialJSON string
}

// StreamEvent is one event emitted while a completion streams in. Fields
// outside of Type are populated according to which variant Type names.
type StreamEvent struct {
	Type StreamEventType

	// MessageStart
	ID    string
	Model string

	// ContentBlockStart / ContentBlockStop / ContentBlockDelta
	Index       int
	ContentType string
	Delta       *ContentDelta

	// MessageDelta
	StopReason *StopReason
	Usage      *Usage

	// Error
	Message string
}

// ParsedToolCall is a tool invocation recovered from prompt-based parsing,
// for backends that don't support structured tool_use blocks natively.
type ParsedToolCall struct {
	ID        string
	Name      string
	Arguments []byte
}

func (p ParsedToolCall) ToContentBlock() ContentBlock {
	return ToolUseBlockNew(p.ID, p.Name, p.Arguments)
}

// ToolFormatter controls how a backend that lacks native tool_use support
// exposes tools to the model: injected into the system prompt and parsed
// back out of free-form text.
type ToolFormatter interface {
	SupportsNativeTools() bool
	ToolCallingInstructions() string
	FormatToolDefinitions(tools []ToolDefinition) string
	FormatToolResult(toolUseID, content string, isError bool) string
	ParseToolCalls(text string) (string, []ParsedToolCall)
}

// DefaultToolFormat implements ToolFormatter with the human-readable
// fallback shared by every backend that doesn't override it. Concrete
// backends embed this and shadow only the methods they need to customize.
type DefaultToolFormat struct{}

func (DefaultToolFormat) SupportsNativeTools() bool         { return false }
func (DefaultToolFormat) ToolCallingInstructions() string   { return "" }

func (DefaultToolFormat) FormatToolDefinitions(tools []ToolDefinition) string {
	return DefaultFormatToolDefinitions(tools)
}

func (DefaultToolFormat) FormatToolResult(toolUseID, content string, isError bool) string {
	return DefaultFormatToolResult(toolUseID, content, isError)
}

func (DefaultToolFormat) ParseToolCalls(text string) (string, []ParsedToolCall) {
	return text, nil
}

// DefaultFormatToolDefinitions renders tool definitions as a Markdown
// section suitable for injection into a system prompt.
func DefaultFormatToolDefinitions(tools []ToolDefinition) string {
	if len(tools) == 0 {
		return "No tools available."
	}

	var b strings.Builder
	b.WriteString("## Available Tools\n\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "### %s\n%s\n", t.Name, t.Description)

		props := toolInputProperties(t.InputSchema)
		if len(props) > 0 {
			b.WriteString("\nParameters:\n")
			for _, p := range props {
				fmt.Fprintf(&b, "- `%s` (%s): %s\n", p.name, p.typ, p.description)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// DefaultFormatToolResult renders a tool result as a single bracketed line.
func DefaultFormatToolResult(toolUseID, content string, isError bool) string {
	if isError {
		return fmt.Sprintf("[Tool %s Error]: %s", toolUseID, content)
	}
	return fmt.Sprintf("[Tool %s Result]: %s", toolUseID, content)
}

// LLMBackend is implemented by every concrete LLM provider connection
// (Anthropic, OpenAI-shaped local models, mocks). The RLM engine drives
// exploration purely through this interface, so it never depends on a
// specific wire format.
type LLMBackend interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	CompleteStream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
	Name() string
	HealthCheck(ctx context.Context) error
	ToolFormatter
}

// WithRetry runs fn, retrying on transient network failures with
// exponential backoff. Non-retryable errors return immediately.
func WithRetry[T any](ctx context.Context, maxRetries int, initialBackoff time.Duration, backendName string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !IsRetryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt < maxRetries {
			slog.Warn("request failed, retrying",
				"backend", backendName,
				"attempt", attempt+1,
				"max_retries", maxRetries,
				"backoff_ms", backoff.Milliseconds())

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return zero, lastErr
}

// MockBackend returns pre-configured responses in order. Useful for
// deterministic testing of the recursive exploration engine.
type MockBackend struct {
	DefaultToolFormat

	name string

	mu        sync.Mutex
	responses []CompletionResponse
	requests  []CompletionRequest
}

func NewMockBackend(responses []CompletionResponse) *MockBackend {
	return &MockBackend{name: "mock", responses: responses}
}

// NewMockTextBackend creates a mock backend with a single text response.
func NewMockTextBackend(text string) *MockBackend {
	return NewMockBackend([]CompletionResponse{
		NewCompletionResponse("mock_msg_1", "mock-model", []ContentBlock{TextBlock(text)}, StopEndTurn, NewUsage(10, 20)),
	})
}

func (m *MockBackend) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockBackend) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.responses) == 0 {
		return CompletionResponse{}, ErrNoMoreResponses
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *MockBackend) CompleteStream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	resp, err := m.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, 6)
	stopReason := StopEndTurn
	if resp.StopReason != nil {
		stopReason = *resp.StopReason
	}
	events <- StreamEvent{Type: EventMessageStart, ID: resp.ID, Model: resp.Model}
	events <- StreamEvent{Type: EventContentBlockStart, Index: 0, ContentType: "text"}
	events <- StreamEvent{Type: EventContentBlockDelta, Index: 0, Delta: &ContentDelta{Type: DeltaText, Text: resp.Text()}}
	events <- StreamEvent{Type: EventContentBlockStop, Index: 0}
	events <- StreamEvent{Type: EventMessageDelta, StopReason: &stopReason, Usage: &resp.Usage}
	events <- StreamEvent{Type: EventMessageStop}
	close(events)
	return events, nil
}

func (m *MockBackend) Name() string { return m.name }

func (m *MockBackend) HealthCheck(ctx context.Context) error { return nil }

// LoggingBackend wraps another backend, logging every request and response
// at debug level.
type LoggingBackend struct {
	inner LLMBackend
	name  string
}

func NewLoggingBackend(inner LLMBackend) *LoggingBackend {
	return &LoggingBackend{inner: inner, name: fmt.Sprintf("logging(%s)", inner.Name())}
}

func (l *LoggingBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	slog.Debug("sending completion request", "backend", l.inner.Name(), "model", req.Model, "messages", len(req.Messages))

	start := time.Now()
	resp, err := l.inner.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		slog.Warn("completion failed", "backend", l.inner.Name(), "error", err, "duration_ms", elapsed.Milliseconds())
		return resp, err
	}
	slog.Debug("completion successful",
		"backend", l.inner.Name(),
		"response_id", resp.ID,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration_ms", elapsed.Milliseconds())
	return resp, nil
}

func (l *LoggingBackend) CompleteStream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	slog.Debug("starting streaming completion", "backend", l.inner.Name(), "model", req.Model)
	return l.inner.CompleteStream(ctx, req)
}

func (l *LoggingBackend) Name() string                       { return l.name }
func (l *LoggingBackend) HealthCheck(ctx context.Context) error { return l.inner.HealthCheck(ctx) }

func (l *LoggingBackend) SupportsNativeTools() bool       { return l.inner.SupportsNativeTools() }
func (l *LoggingBackend) ToolCallingInstructions() string { return l.inner.ToolCallingInstructions() }
func (l *LoggingBackend) FormatToolDefinitions(tools []ToolDefinition) string {
	return l.inner.FormatToolDefinitions(tools)
}
func (l *LoggingBackend) FormatToolResult(toolUseID, content string, isError bool) string {
	return l.inner.FormatToolResult(toolUseID, content, isError)
}
func (l *LoggingBackend) ParseToolCalls(text string) (string, []ParsedToolCall) {
	return l.inner.ParseToolCalls(text)
}

type toolProperty struct {
	name        string
	typ         string
	description string
}

// toolInputProperties pulls the "properties" object out of a JSON Schema
// document for rendering in a human-readable tool list.
func toolInputProperties(schema []byte) []toolProperty {
	if len(schema) == 0 {
		return nil
	}
	var parsed struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(schema, &parsed); err != nil {
		return nil
	}
	names := make([]string, 0, len(parsed.Properties))
	for name := range parsed.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]toolProperty, 0, len(names))
	for _, name := range names {
		p := parsed.Properties[name]
		typ := p.Type
		if typ == "" {
			typ = "any"
		}
		out = append(out, toolProperty{name: name, typ: typ, description: p.Description})
	}
	return out
}
