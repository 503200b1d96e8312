package rlm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/colliery-io/muninn/internal/httpclient"
)

const (
	anthropicDefaultBaseURL   = "https://api.anthropic.com"
	anthropicAPIVersion       = "2023-06-01"
	anthropicDefaultTimeout   = 300 * time.Second
	anthropicDefaultRetries   = 3
	anthropicDefaultBackoff   = 500 * time.Millisecond
)

// AnthropicConfig configures a connection to Anthropic's Messages API.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func NewAnthropicConfig(apiKey string) AnthropicConfig {
	return AnthropicConfig{
		APIKey:       apiKey,
		BaseURL:      anthropicDefaultBaseURL,
		Timeout:      anthropicDefaultTimeout,
		MaxRetries:   anthropicDefaultRetries,
		RetryBackoff: anthropicDefaultBackoff,
	}
}

// AnthropicConfigFromEnv builds a config from ANTHROPIC_API_KEY and, if set,
// ANTHROPIC_BASE_URL.
func AnthropicConfigFromEnv() (AnthropicConfig, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return AnthropicConfig{}, NewBackendError("anthropic", "ANTHROPIC_API_KEY environment variable not set")
	}
	cfg := NewAnthropicConfig(key)
	if base := os.Getenv("ANTHROPIC_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}
	return cfg, nil
}

// AnthropicBackend talks directly to Anthropic's Messages API. Since our
// wire types already mirror that API, requests and responses pass through
// largely unmodified; the only work done here is stripping the internal
// muninn control block before the request leaves the process.
type AnthropicBackend struct {
	DefaultToolFormat

	httpClient *httpclient.Client
	config     AnthropicConfig
}

func NewAnthropicBackend(config AnthropicConfig) (*AnthropicBackend, error) {
	if config.APIKey == "" {
		return nil, NewBackendError("anthropic", "API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = anthropicDefaultBaseURL
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = anthropicDefaultRetries
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = anthropicDefaultBackoff
	}

	httpClient := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
		httpclient.WithMaxRetries(config.MaxRetries),
		httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders),
	)

	return &AnthropicBackend{httpClient: httpClient, config: config}, nil
}

func (b *AnthropicBackend) Name() string { return "anthropic" }

// Anthropic handles tool definitions and tool_use/tool_result blocks
// natively through the API, so no prompt injection is needed.
func (b *AnthropicBackend) SupportsNativeTools() bool { return true }

func (b *AnthropicBackend) messagesURL() string {
	return b.config.BaseURL + "/v1/messages"
}

func (b *AnthropicBackend) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", b.config.APIKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
}

// wireRequest is CompletionRequest stripped of the muninn control block,
// which is an internal extension never sent upstream.
type wireRequest struct {
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
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Thinking      json.RawMessage        `json:"thinking,omitempty"`
}

func toWireRequest(req CompletionRequest, stream bool) wireRequest {
	return wireRequest{
		Model:         req.Model,
		Messages:      req.Messages,
		MaxTokens:     req.MaxTokens,
		System:        req.System,
		Tools:         req.Tools,
		ToolChoice:    req.ToolChoice,
		Stream:        stream,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
		Metadata:      req.Metadata,
		Thinking:      req.Thinking,
	}
}

func (b *AnthropicBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	wire := toWireRequest(req, false)

	return WithRetry(ctx, b.config.MaxRetries, b.config.RetryBackoff, "anthropic", func() (CompletionResponse, error) {
		body, err := json.Marshal(wire)
		if err != nil {
			return CompletionResponse{}, NewBackendError("anthropic", fmt.Sprintf("marshal request: %v", err))
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.messagesURL(), bytes.NewReader(body))
		if err != nil {
			return CompletionResponse{}, NewBackendError("anthropic", fmt.Sprintf("build request: %v", err))
		}
		b.setHeaders(httpReq)

		resp, err := b.httpClient.Do(httpReq)
		if err != nil && resp == nil {
			return CompletionResponse{}, MarkTransient(err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return CompletionResponse{}, MarkTransient(err)
		}

		if resp.StatusCode != http.StatusOK {
			return CompletionResponse{}, anthropicErrorFor(resp.StatusCode, respBody)
		}

		var out CompletionResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return CompletionResponse{}, NewBackendError("anthropic", fmt.Sprintf("decode response: %v", err))
		}
		return out, nil
	})
}

func anthropicErrorFor(status int, body []byte) error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := string(body)
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized:
		return NewBackendError("anthropic", "authentication failed: "+msg)
	case status == http.StatusTooManyRequests:
		return MarkTransient(NewBackendError("anthropic", "rate limit exceeded: "+msg))
	case status >= 500:
		return MarkTransient(NewBackendError("anthropic", fmt.Sprintf("server error (%d): %s", status, msg)))
	default:
		return NewBackendError("anthropic", fmt.Sprintf("HTTP %d: %s", status, msg))
	}
}

func (b *AnthropicBackend) CompleteStream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	wire := toWireRequest(req, true)

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, NewBackendError("anthropic", fmt.Sprintf("marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.messagesURL(), bytes.NewReader(body))
	if err != nil {
		return nil, NewBackendError("anthropic", fmt.Sprintf("build request: %v", err))
	}
	b.setHeaders(httpReq)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil && resp == nil {
		return nil, MarkTransient(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, anthropicErrorFor(resp.StatusCode, respBody)
	}

	events := make(chan StreamEvent, 16)
	go func() {
		defer resp.Body.Close()
		defer close(events)
		parseAnthropicSSE(ctx, resp.Body, events)
	}()
	return events, nil
}

// sseEvent mirrors the JSON shape of a single Anthropic Messages API SSE
// payload, across every event type.
type sseEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	Message      *struct {
		ID    string `json:"id"`
		Model string `json:"model"`
	} `json:"message,omitempty"`
	ContentBlock *struct {
		Type string `json:"type"`
	} `json:"content_block,omitempty"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text,omitempty"`
		PartialJSON string `json:"partial_json,omitempty"`
		StopReason  string `json:"stop_reason,omitempty"`
	} `json:"delta,omitempty"`
	Usage *struct {
		InputTokens  uint32 `json:"input_tokens"`
		OutputTokens uint32 `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func parseAnthropicSSE(ctx context.Context, body io.Reader, events chan<- StreamEvent) {
	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var raw sseEvent
		if err := json.Unmarshal([]byte(data), &raw); err != nil {
			continue
		}

		ev, ok := translateSSEEvent(raw)
		if !ok {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case events <- ev:
		}
		if raw.Type == "message_stop" {
			return
		}
	}
}

func translateSSEEvent(raw sseEvent) (StreamEvent, bool) {
	switch raw.Type {
	case "message_start":
		if raw.Message == nil {
			return StreamEvent{}, false
		}
		return StreamEvent{Type: EventMessageStart, ID: raw.Message.ID, Model: raw.Message.Model}, true
	case "content_block_start":
		contentType := ""
		if raw.ContentBlock != nil {
			contentType = raw.ContentBlock.Type
		}
		return StreamEvent{Type: EventContentBlockStart, Index: raw.Index, ContentType: contentType}, true
	case "content_block_delta":
		if raw.Delta == nil {
			return StreamEvent{}, false
		}
		var delta ContentDelta
		switch raw.Delta.Type {
		case "text_delta":
			delta = ContentDelta{Type: DeltaText, Text: raw.Delta.Text}
		case "input_json_delta":
			delta = ContentDelta{Type: DeltaInputJSON, PartialJSON: raw.Delta.PartialJSON}
		default:
			return StreamEvent{}, false
		}
		return StreamEvent{Type: EventContentBlockDelta, Index: raw.Index, Delta: &delta}, true
	case "content_block_stop":
		return StreamEvent{Type: EventContentBlockStop, Index: raw.Index}, true
	case "message_delta":
		ev := StreamEvent{Type: EventMessageDelta}
		if raw.Delta != nil && raw.Delta.StopReason != "" {
			sr := StopReason(raw.Delta.StopReason)
			ev.StopReason = &sr
		}
		if raw.Usage != nil {
			ev.Usage = &Usage{InputTokens: raw.Usage.InputTokens, OutputTokens: raw.Usage.OutputTokens}
		}
		return ev, true
	case "message_stop":
		return StreamEvent{Type: EventMessageStop}, true
	case "ping":
		return StreamEvent{Type: EventPing}, true
	case "error":
		msg := ""
		if raw.Error != nil {
			msg = raw.Error.Message
		}
		return StreamEvent{Type: EventError, Message: msg}, true
	default:
		return StreamEvent{}, false
	}
}

func (b *AnthropicBackend) HealthCheck(ctx context.Context) error {
	req := NewCompletionRequest("claude-3-5-haiku-20241022", []Message{UserMessage("ping")}, 1)
	_, err := b.Complete(ctx, req)
	if err != nil {
		var be *BackendError
		if ok := asBackendError(err, &be); ok && strings.Contains(be.Message, "rate limit") {
			return nil
		}
		return err
	}
	return nil
}

func asBackendError(err error, target **BackendError) bool {
	be, ok := err.(*BackendError)
	if ok {
		*target = be
	}
	return ok
}
