// Package passthrough forwards requests unchanged (aside from
// required field stripping and auth) to an upstream LLM API, for the
// request path that doesn't go through recursive exploration.
package passthrough

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/colliery-io/muninn/internal/httpclient"
	"github.com/colliery-io/muninn/internal/rlm"
	"github.com/colliery-io/muninn/internal/token"
)

// ApiProvider tags which upstream a PassthroughConfig targets, since
// header and URL conventions differ by provider.
type ApiProvider string

const (
	ProviderAnthropic ApiProvider = "anthropic"
	ProviderOpenAI    ApiProvider = "openai"
	ProviderCustom    ApiProvider = "custom"
)

// AuthMode controls how Passthrough obtains the credential it attaches
// to a forwarded request.
type AuthMode string

const (
	// AuthAPIKey uses the client-supplied API key from request headers.
	AuthAPIKey AuthMode = "api_key"
	// AuthOAuth always uses a token from the token manager.
	AuthOAuth AuthMode = "oauth"
	// AuthOAuthWithFallback tries OAuth first and falls back to the
	// client-supplied API key if no OAuth tokens are available or a
	// refresh fails.
	AuthOAuthWithFallback AuthMode = "oauth_with_fallback"
)

const (
	AnthropicAPIURL = "https://api.anthropic.com"
	OpenAIAPIURL    = "https://api.openai.com"

	anthropicVersion = "2023-06-01"
	anthropicBeta    = "oauth-2025-04-20,claude-code-20250219,interleaved-thinking-2025-05-14,fine-grained-tool-streaming-2025-05-14"

	// claudeCodeSystemPrompt is required as the first system block for
	// OAuth/MAX-plan requests; the upstream API rejects OAuth requests
	// that don't identify as Claude Code.
	claudeCodeSystemPrompt = "You are Claude Code, Anthropic's official CLI for Claude."
)

// Config configures a Passthrough client.
type Config struct {
	BaseURL             string
	Provider            ApiProvider
	MessagesPath        string
	AuthHeader          string
	ExtraHeaders        map[string]string
	AuthMode            AuthMode
	InjectSystemPrompt  bool
}

// AnthropicConfig targets Anthropic's API with API-key auth.
func AnthropicConfig() Config {
	return Config{
		BaseURL:      AnthropicAPIURL,
		Provider:     ProviderAnthropic,
		MessagesPath: "/v1/messages",
		AuthHeader:   "x-api-key",
		ExtraHeaders: map[string]string{"anthropic-version": anthropicVersion},
		AuthMode:     AuthAPIKey,
	}
}

// AnthropicOAuthConfig targets Anthropic's API with OAuth (Claude MAX
// plan), falling back to an API key when no OAuth session exists.
func AnthropicOAuthConfig() Config {
	return Config{
		BaseURL:      AnthropicAPIURL,
		Provider:     ProviderAnthropic,
		MessagesPath: "/v1/messages",
		AuthHeader:   "Authorization",
		ExtraHeaders: map[string]string{
			"anthropic-version": anthropicVersion,
			"anthropic-beta":    anthropicBeta,
		},
		AuthMode:           AuthOAuthWithFallback,
		InjectSystemPrompt: true,
	}
}

// OpenAIConfig targets an OpenAI-compatible chat completions endpoint.
func OpenAIConfig() Config {
	return Config{
		BaseURL:      OpenAIAPIURL,
		Provider:     ProviderOpenAI,
		MessagesPath: "/v1/chat/completions",
		AuthHeader:   "Authorization",
		ExtraHeaders: map[string]string{},
		AuthMode:     AuthAPIKey,
	}
}

// CustomConfig targets an arbitrary base URL with API-key auth.
func CustomConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Provider:     ProviderCustom,
		MessagesPath: "/v1/messages",
		AuthHeader:   "x-api-key",
		ExtraHeaders: map[string]string{},
		AuthMode:     AuthAPIKey,
	}
}

// DefaultConfig is OAuth mode for Claude MAX plan support.
func DefaultConfig() Config { return AnthropicOAuthConfig() }

func (c Config) WithBaseURL(url string) Config {
	c.BaseURL = url
	return c
}

func (c Config) WithMessagesPath(path string) Config {
	c.MessagesPath = path
	return c
}

func (c Config) WithAuthHeader(header string) Config {
	c.AuthHeader = header
	return c
}

func (c Config) WithHeader(key, value string) Config {
	headers := make(map[string]string, len(c.ExtraHeaders)+1)
	for k, v := range c.ExtraHeaders {
		headers[k] = v
	}
	headers[key] = value
	c.ExtraHeaders = headers
	return c
}

func (c Config) WithAuthMode(mode AuthMode) Config {
	c.AuthMode = mode
	return c
}

func (c Config) WithSystemPromptInjection(inject bool) Config {
	c.InjectSystemPrompt = inject
	return c
}

// Passthrough forwards requests to an upstream LLM API unchanged
// except for field whitelisting, auth header selection, and (for
// OAuth mode) required system prompt injection.
type Passthrough struct {
	httpClient   *httpclient.Client
	config       Config
	tokenManager token.Manager
}

func New() *Passthrough {
	return WithConfig(DefaultConfig())
}

func NewAnthropic() *Passthrough {
	return WithConfig(AnthropicConfig())
}

func NewAnthropicOAuth() *Passthrough {
	return WithConfig(AnthropicOAuthConfig())
}

func WithConfig(config Config) *Passthrough {
	return &Passthrough{
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
			httpclient.WithMaxRetries(2),
		),
		config: config,
	}
}

// NewWithBaseURL is a convenience constructor for custom Anthropic-shaped
// endpoints (e.g. local test servers).
func NewWithBaseURL(baseURL string) *Passthrough {
	return WithConfig(AnthropicConfig().WithBaseURL(baseURL))
}

func (p *Passthrough) WithTokenManager(manager token.Manager) *Passthrough {
	p.tokenManager = manager
	return p
}

func (p *Passthrough) Config() Config { return p.config }

func (p *Passthrough) TokenManager() token.Manager { return p.tokenManager }

func (p *Passthrough) url() string {
	return p.config.BaseURL + p.config.MessagesPath
}

// ErrStreamingRawOnly is returned by ForwardRaw when the request body
// declares stream:true; streaming traffic must go through
// ForwardRawStream instead.
var ErrStreamingRawOnly = fmt.Errorf("streaming requests should use ForwardRawStream")

// UpstreamError reports a non-2xx response from the upstream API,
// preserving the status code so callers (the proxy's error mapping)
// can relay it rather than collapsing every upstream failure to 502.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream API error (%d): %s", e.StatusCode, e.Body)
}

// Forward sends a strongly-typed completion request upstream and
// parses the response back into rlm's wire types.
func (p *Passthrough) Forward(ctx context.Context, request rlm.CompletionRequest, apiKey string) (rlm.CompletionResponse, error) {
	forwardReq := p.prepareRequest(request)

	body, err := json.Marshal(forwardReq)
	if err != nil {
		return rlm.CompletionResponse{}, fmt.Errorf("encoding forward request: %w", err)
	}

	respBody, err := p.send(ctx, body, apiKey)
	if err != nil {
		return rlm.CompletionResponse{}, err
	}

	var completion rlm.CompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return rlm.CompletionResponse{}, fmt.Errorf("parsing upstream response: %w", err)
	}
	return completion, nil
}

// ForwardRaw forwards a raw JSON request body, the preferred path for
// live traffic since it sidesteps strict typing of opaque blocks
// (thinking, images) the wire types don't model in full.
func (p *Passthrough) ForwardRaw(ctx context.Context, request map[string]interface{}, apiKey string) (map[string]interface{}, error) {
	if streaming, _ := request["stream"].(bool); streaming {
		return nil, ErrStreamingRawOnly
	}

	prepared := p.prepareRawRequest(request)
	body, err := json.Marshal(prepared)
	if err != nil {
		return nil, fmt.Errorf("encoding forward request: %w", err)
	}

	respBody, err := p.send(ctx, body, apiKey)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing upstream response: %w", err)
	}
	return result, nil
}

// ForwardRawStream forwards a raw JSON streaming request and returns
// the live upstream response so the caller can relay its SSE body
// straight through to the client.
func (p *Passthrough) ForwardRawStream(ctx context.Context, request map[string]interface{}, apiKey string) (*http.Response, error) {
	prepared := p.prepareRawRequest(request)
	body, err := json.Marshal(prepared)
	if err != nil {
		return nil, fmt.Errorf("encoding forward request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building forward request: %w", err)
	}
	if err := p.setHeaders(ctx, req, apiKey); err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil && resp == nil {
		return nil, fmt.Errorf("forwarding streaming request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

func (p *Passthrough) send(ctx context.Context, body []byte, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building forward request: %w", err)
	}
	if err := p.setHeaders(ctx, req, apiKey); err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil && resp == nil {
		return nil, fmt.Errorf("forwarding request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (p *Passthrough) setHeaders(ctx context.Context, req *http.Request, apiKey string) error {
	req.Header.Set("Content-Type", "application/json")

	authValue, err := p.authValue(ctx, apiKey)
	if err != nil {
		return err
	}
	req.Header.Set(p.config.AuthHeader, authValue)

	for key, value := range p.config.ExtraHeaders {
		req.Header.Set(key, value)
	}
	return nil
}

// authValue resolves the credential to send based on the configured
// AuthMode.
func (p *Passthrough) authValue(ctx context.Context, apiKey string) (string, error) {
	switch p.config.AuthMode {
	case AuthAPIKey:
		if apiKey == "" {
			return "", fmt.Errorf("API key required but not provided")
		}
		return p.formatAuthValue(apiKey), nil

	case AuthOAuth:
		if p.tokenManager == nil {
			return "", fmt.Errorf("oauth mode requires a token manager")
		}
		accessToken, err := p.tokenManager.GetValidAccessToken(ctx)
		if err != nil {
			return "", err
		}
		return "Bearer " + accessToken, nil

	case AuthOAuthWithFallback:
		if p.tokenManager != nil && p.tokenManager.HasTokens() {
			accessToken, err := p.tokenManager.GetValidAccessToken(ctx)
			if err == nil {
				return "Bearer " + accessToken, nil
			}
		}
		if apiKey != "" {
			return p.formatAuthValue(apiKey), nil
		}
		return "", fmt.Errorf("no oauth tokens available and no API key provided, run 'muninn oauth' to authenticate")

	default:
		return "", fmt.Errorf("unknown auth mode %q", p.config.AuthMode)
	}
}

func (p *Passthrough) formatAuthValue(key string) string {
	switch {
	case p.config.Provider == ProviderOpenAI:
		return "Bearer " + key
	case p.config.Provider == ProviderAnthropic && p.config.AuthMode != AuthAPIKey:
		return "Bearer " + key
	default:
		return key
	}
}

// forwardRequest mirrors rlm.CompletionRequest but without the muninn
// control block, which is internal and never sent upstream.
type forwardRequest struct {
	Model         string                 `json:"model"`
	MaxTokens     uint32                 `json:"max_tokens"`
	Messages      []rlm.Message          `json:"messages"`
	System        []systemMessage        `json:"system,omitempty"`
	StopSequences []string               `json:"stop_sequences,omitempty"`
	Temperature   *float32               `json:"temperature,omitempty"`
	TopP          *float32               `json:"top_p,omitempty"`
	TopK          *uint32                `json:"top_k,omitempty"`
	Tools         []rlm.ToolDefinition   `json:"tools,omitempty"`
	ToolChoice    *rlm.ToolChoice        `json:"tool_choice,omitempty"`
	Stream        *bool                  `json:"stream,omitempty"`
}

type systemMessage struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

func systemText(text string) systemMessage {
	return systemMessage{Type: "text", Text: text}
}

type cacheControl struct {
	Type string `json:"type"`
}

func (p *Passthrough) prepareRequest(request rlm.CompletionRequest) forwardRequest {
	var stream *bool
	if request.Stream {
		v := true
		stream = &v
	}

	var system []systemMessage
	if request.System != nil {
		system = []systemMessage{systemText(request.System.ToText())}
	}
	if p.config.InjectSystemPrompt {
		system = injectClaudeCodeSystemPrompt(system)
	}

	return forwardRequest{
		Model:         request.Model,
		MaxTokens:     request.MaxTokens,
		Messages:      request.Messages,
		System:        system,
		StopSequences: nonEmpty(request.StopSequences),
		Temperature:   request.Temperature,
		TopP:          request.TopP,
		TopK:          request.TopK,
		Tools:         nonEmptyTools(request.Tools),
		ToolChoice:    request.ToolChoice,
		Stream:        stream,
	}
}

func nonEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func nonEmptyTools(t []rlm.ToolDefinition) []rlm.ToolDefinition {
	if len(t) == 0 {
		return nil
	}
	return t
}

// injectClaudeCodeSystemPrompt prepends the required Claude Code
// identification prompt unless it's already the first block.
func injectClaudeCodeSystemPrompt(system []systemMessage) []systemMessage {
	required := systemText(claudeCodeSystemPrompt)
	if len(system) > 0 && system[0].Text == claudeCodeSystemPrompt {
		return system
	}
	return append([]systemMessage{required}, system...)
}

// validRequestFields whitelists the top-level JSON fields Anthropic's
// API actually accepts; an agent-SDK field like context_management is
// stripped rather than forwarded.
var validRequestFields = map[string]bool{
	"model": true, "max_tokens": true, "system": true, "messages": true,
	"tools": true, "tool_choice": true, "stream": true, "temperature": true,
	"top_p": true, "top_k": true, "stop_sequences": true, "metadata": true,
	"thinking": true,
}

func (p *Passthrough) prepareRawRequest(request map[string]interface{}) map[string]interface{} {
	sanitized := make(map[string]interface{}, len(request))
	for key, value := range request {
		if validRequestFields[key] {
			sanitized[key] = value
		}
	}

	if p.config.InjectSystemPrompt {
		injectSystemPromptRaw(sanitized)
	}
	return sanitized
}

func injectSystemPromptRaw(request map[string]interface{}) {
	requiredPrompt := map[string]interface{}{"type": "text", "text": claudeCodeSystemPrompt}

	systemArray := normalizeSystemRaw(request["system"])

	hasRequired := len(systemArray) > 0 &&
		systemArray[0]["type"] == "text" &&
		systemArray[0]["text"] == claudeCodeSystemPrompt

	if hasRequired {
		request["system"] = systemArray
		return
	}

	newSystem := make([]map[string]interface{}, 0, len(systemArray)+1)
	newSystem = append(newSystem, requiredPrompt)
	newSystem = append(newSystem, systemArray...)
	request["system"] = newSystem
}

func normalizeSystemRaw(system interface{}) []map[string]interface{} {
	switch v := system.(type) {
	case string:
		return []map[string]interface{}{{"type": "text", "text": v}}
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
