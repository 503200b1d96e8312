// Package rlm implements the Recursive Language Model exploration engine:
// a bounded, tool-using LLM loop that runs against a local code-graph index
// before synthesizing an answer, plus the Anthropic-Messages-API-compatible
// wire types it shares with the passthrough path.
package rlm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt is either a plain string or an array of cacheable text
// blocks, matching the untagged `SystemPrompt` enum of the wire protocol.
type SystemPrompt struct {
	Text   string
	Blocks []SystemBlock
}

// SystemBlock is one text block of a multi-block system prompt.
type SystemBlock struct {
	Text          string         `json:"text"`
	BlockType     string         `json:"type"`
	CacheControl  *CacheControl  `json:"cache_control,omitempty"`
}

func NewSystemText(text string) *SystemPrompt {
	return &SystemPrompt{Text: text}
}

// ToText flattens either form of the system prompt to a single string.
func (s *SystemPrompt) ToText() string {
	if s == nil {
		return ""
	}
	if s.Blocks != nil {
		parts := make([]string, len(s.Blocks))
		for i, b := range s.Blocks {
			parts[i] = b.Text
		}
		return strings.Join(parts, "\n")
	}
	return s.Text
}

func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if s.Blocks != nil {
		return json.Marshal(s.Blocks)
	}
	return json.Marshal(s.Text)
}

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		s.Text = text
		s.Blocks = nil
		return nil
	}
	var blocks []SystemBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("system prompt is neither a string nor a block array: %w", err)
	}
	s.Blocks = blocks
	return nil
}

// CacheControl marks a content region as eligible for prompt caching.
type CacheControl struct {
	Type string `json:"type"`
}

func Ephemeral() *CacheControl {
	return &CacheControl{Type: "ephemeral"}
}

// Role is the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the conversation.
type Message struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: Content{Text: text}}
}

func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: Content{Text: text}}
}

func AssistantBlocks(blocks []ContentBlock) Message {
	return Message{Role: RoleAssistant, Content: Content{Blocks: blocks}}
}

func ToolResultsMessage(results []ToolResultBlock) Message {
	blocks := make([]ContentBlock, len(results))
	for i, r := range results {
		blocks[i] = r.ToContentBlock()
	}
	return Message{Role: RoleUser, Content: Content{Blocks: blocks}}
}

// Content is either plain text or an array of structured blocks, matching
// the untagged `Content` enum of the wire protocol.
type Content struct {
	Text   string
	Blocks []ContentBlock
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Blocks != nil {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = text
		c.Blocks = nil
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("content is neither a string nor a block array: %w", err)
	}
	c.Blocks = blocks
	return nil
}

// AsText returns the plain-text form, or "" and false if this is a block
// array.
func (c Content) AsText() (string, bool) {
	if c.Blocks != nil {
		return "", false
	}
	return c.Text, true
}

// AsBlocks normalizes either form to a block slice.
func (c Content) AsBlocks() []ContentBlock {
	if c.Blocks != nil {
		return c.Blocks
	}
	return []ContentBlock{TextBlock(c.Text)}
}

// ToText extracts and concatenates every text block's content.
func (c Content) ToText() string {
	if c.Blocks == nil {
		return c.Text
	}
	var b strings.Builder
	for _, blk := range c.Blocks {
		if blk.Type == BlockText {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

// BlockType discriminates ContentBlock's tagged union.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockThinking   BlockType = "thinking"
)

// ContentBlock is a single block of message content. Only the fields
// relevant to Type are populated, mirroring the Rust `ContentBlock` enum's
// per-variant payload as a flat struct.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Text
	Text string `json:"text,omitempty"`

	// ToolUse
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// ToolResult
	ToolUseID string            `json:"tool_use_id,omitempty"`
	Content   *ToolResultContent `json:"content,omitempty"`
	IsError   bool              `json:"is_error,omitempty"`

	// Thinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolUseBlockNew(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

func ToolResultSuccess(toolUseID, content string) ContentBlock {
	c := TextResultContent(content)
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: &c, IsError: false}
}

func ToolResultError(toolUseID, errMsg string) ContentBlock {
	c := TextResultContent(errMsg)
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: &c, IsError: true}
}

// ToolResultContent is either a plain string or an array of arbitrary
// content values, matching the untagged `ToolResultContent` enum.
type ToolResultContent struct {
	Text   string
	Blocks []json.RawMessage
}

func TextResultContent(text string) ToolResultContent {
	return ToolResultContent{Text: text}
}

func (t ToolResultContent) MarshalJSON() ([]byte, error) {
	if t.Blocks != nil {
		return json.Marshal(t.Blocks)
	}
	return json.Marshal(t.Text)
}

func (t *ToolResultContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		t.Text = text
		t.Blocks = nil
		return nil
	}
	var blocks []json.RawMessage
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("tool result content is neither a string nor an array: %w", err)
	}
	t.Blocks = blocks
	return nil
}

// ToolUseBlock is a convenience projection of a ToolUse content block.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResultBlock is a convenience struct for building a tool-result
// content block.
type ToolResultBlock struct {
	ToolUseID string
	Content   *ToolResultContent
	IsError   bool
}

func NewToolResultSuccess(toolUseID, content string) ToolResultBlock {
	c := TextResultContent(content)
	return ToolResultBlock{ToolUseID: toolUseID, Content: &c, IsError: false}
}

func NewToolResultError(toolUseID, errMsg string) ToolResultBlock {
	c := TextResultContent(errMsg)
	return ToolResultBlock{ToolUseID: toolUseID, Content: &c, IsError: true}
}

func (t ToolResultBlock) ToContentBlock() ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: t.ToolUseID, Content: t.Content, IsError: t.IsError}
}

// ToolDefinition describes one tool available to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolChoiceType discriminates ToolChoice's tagged union.
type ToolChoiceType string

const (
	ToolChoiceAutoType ToolChoiceType = "auto"
	ToolChoiceAnyType  ToolChoiceType = "any"
	ToolChoiceToolType ToolChoiceType = "tool"
	ToolChoiceNoneType ToolChoiceType = "none"
)

// ToolChoice controls how the model selects which tool to use.
type ToolChoice struct {
	Type ToolChoiceType `json:"type"`
	Name string         `json:"name,omitempty"`
}

func ToolChoiceAuto() ToolChoice           { return ToolChoice{Type: ToolChoiceAutoType} }
func ToolChoiceAny() ToolChoice            { return ToolChoice{Type: ToolChoiceAnyType} }
func ToolChoiceNone() ToolChoice           { return ToolChoice{Type: ToolChoiceNoneType} }
func ToolChoiceSpecific(name string) ToolChoice {
	return ToolChoice{Type: ToolChoiceToolType, Name: name}
}

// CompletionRequest is a completion request compatible with the Anthropic
// Messages API, extended with an optional Muninn block for recursive
// exploration control.
type CompletionRequest struct {
	Model         string                 `json:"model"`
	Messages      []Message              `json:"messages"`
	MaxTokens     uint32                 `json:"max_tokens"`
	System        *SystemPrompt          `json:"system,omitempty"`
	Tools         []ToolDefinition       `json:"tools,omitempty"`
	ToolChoice    *ToolChoice            `json:"tool_choice,omitempty"`
	Stream        bool                   `json:"stream,omitempty"`
	Temperature   *float32               `json:"temperature,omitempty"`
	TopP          *float32               `json:"top_p,omitempty"`
	TopK          *uint32                `json:"top_k,omitempty"`
	StopSequences []string               `json:"stop_sequences,omitempty"`
	Muninn        *MuninnConfig          `json:"muninn,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Thinking      json.RawMessage        `json:"thinking,omitempty"`
}

func NewCompletionRequest(model string, messages []Message, maxTokens uint32) CompletionRequest {
	return CompletionRequest{Model: model, Messages: messages, MaxTokens: maxTokens}
}

func (r CompletionRequest) WithSystem(text string) CompletionRequest {
	r.System = NewSystemText(text)
	return r
}

func (r CompletionRequest) WithTools(tools []ToolDefinition) CompletionRequest {
	r.Tools = tools
	return r
}

func (r CompletionRequest) WithStreaming() CompletionRequest {
	r.Stream = true
	return r
}

func (r CompletionRequest) WithMuninn(config MuninnConfig) CompletionRequest {
	r.Muninn = &config
	return r
}

// StopReason explains why the model stopped generating.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// Usage reports token consumption for one completion.
type Usage struct {
	InputTokens              uint32 `json:"input_tokens"`
	OutputTokens             uint32 `json:"output_tokens"`
	CacheCreationInputTokens uint32 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     uint32 `json:"cache_read_input_tokens,omitempty"`
}

func NewUsage(input, output uint32) Usage {
	return Usage{InputTokens: input, OutputTokens: output}
}

func (u Usage) Total() uint32 {
	return u.InputTokens + u.OutputTokens
}

// CompletionResponse is a completion response compatible with the
// Anthropic Messages API, optionally carrying Muninn exploration metadata.
type CompletionResponse struct {
	ID           string                 `json:"id"`
	ResponseType string                 `json:"type"`
	Role         Role                   `json:"role"`
	Content      []ContentBlock         `json:"content"`
	Model        string                 `json:"model"`
	StopReason   *StopReason            `json:"stop_reason"`
	Usage        Usage                  `json:"usage"`
	Muninn       *ExplorationMetadata   `json:"muninn,omitempty"`
}

func NewCompletionResponse(id, model string, content []ContentBlock, stopReason StopReason, usage Usage) CompletionResponse {
	return CompletionResponse{
		ID:           id,
		ResponseType: "message",
		Role:         RoleAssistant,
		Content:      content,
		Model:        model,
		StopReason:   &stopReason,
		Usage:        usage,
	}
}

// ToolUses returns every ToolUse block in the response.
func (r CompletionResponse) ToolUses() []ToolUseBlock {
	var out []ToolUseBlock
	for _, blk := range r.Content {
		if blk.Type == BlockToolUse {
			out = append(out, ToolUseBlock{ID: blk.ID, Name: blk.Name, Input: blk.Input})
		}
	}
	return out
}

// Text concatenates every text block in the response.
func (r CompletionResponse) Text() string {
	var b strings.Builder
	for _, blk := range r.Content {
		if blk.Type == BlockText {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

// HasToolUse reports whether the response requests any tool execution.
func (r CompletionResponse) HasToolUse() bool {
	for _, blk := range r.Content {
		if blk.Type == BlockToolUse {
			return true
		}
	}
	return false
}

// MuninnConfig controls recursive exploration for one request.
//
// IncludeMetadata is a pointer so an absent field decodes as "unset"
// rather than Go's zero value false: a client that sends
// {"muninn":{"recursive":true}} with no include_metadata key still gets
// the metadata object, matching the default-true behavior callers expect
// unless they explicitly set include_metadata = false.
type MuninnConfig struct {
	Recursive       bool         `json:"recursive"`
	Budget          BudgetConfig `json:"budget"`
	IncludeMetadata *bool        `json:"include_metadata,omitempty"`
}

func DefaultMuninnConfig() MuninnConfig {
	return MuninnConfig{Recursive: false, Budget: DefaultBudgetConfig(), IncludeMetadata: boolPtr(true)}
}

func RecursiveMuninnConfig() MuninnConfig {
	return MuninnConfig{Recursive: true, Budget: DefaultBudgetConfig(), IncludeMetadata: boolPtr(true)}
}

func boolPtr(b bool) *bool { return &b }

func (c MuninnConfig) WithBudget(budget BudgetConfig) MuninnConfig {
	c.Budget = budget
	return c
}

// BudgetConfig bounds one recursive exploration run.
type BudgetConfig struct {
	MaxTokens      *uint64 `json:"max_tokens,omitempty"`
	MaxDurationSec *uint64 `json:"max_duration_secs,omitempty"`
	MaxDepth       *uint32 `json:"max_depth,omitempty"`
	MaxToolCalls   *uint32 `json:"max_tool_calls,omitempty"`
}

func u64ptr(v uint64) *uint64 { return &v }
func u32ptr(v uint32) *uint32 { return &v }

func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		MaxTokens:      u64ptr(100_000),
		MaxDurationSec: u64ptr(300),
		MaxDepth:       u32ptr(10),
		MaxToolCalls:   u32ptr(50),
	}
}

// ExplorationMetadata reports what one recursive exploration run actually
// consumed.
type ExplorationMetadata struct {
	DepthReached uint32 `json:"depth_reached"`
	TokensUsed   uint64 `json:"tokens_used"`
	ToolCalls    uint32 `json:"tool_calls"`
	DurationMs   uint64 `json:"duration_ms"`
}
