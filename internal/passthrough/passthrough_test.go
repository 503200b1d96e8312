package passthrough

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/colliery-io/muninn/internal/rlm"
	"github.com/colliery-io/muninn/internal/token"
)

func testServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func echoHandler(t *testing.T, capture *map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if capture != nil {
			*capture = body
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]interface{}{{"type": "text", "text": "ok"}},
			"model":       "claude-sonnet",
			"stop_reason": "end_turn",
			"usage":       map[string]interface{}{"input_tokens": 1, "output_tokens": 1},
		})
	}
}

func TestForward_APIKeyAuth(t *testing.T) {
	var gotHeader string
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("x-api-key")
		echoHandler(t, nil)(w, r)
	})

	p := NewWithBaseURL(srv.URL)
	request := rlm.NewCompletionRequest("claude-sonnet", []rlm.Message{rlm.UserMessage("hi")}, 100)

	resp, err := p.Forward(context.Background(), request, "sk-test")
	require.NoError(t, err)
	require.Equal(t, "sk-test", gotHeader)
	require.Equal(t, "ok", resp.Text())
}

func TestForward_MissingAPIKey(t *testing.T) {
	p := NewAnthropic()
	request := rlm.NewCompletionRequest("claude-sonnet", nil, 100)

	_, err := p.Forward(context.Background(), request, "")
	require.Error(t, err)
}

func TestForward_OAuthMode(t *testing.T) {
	var gotAuth string
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		echoHandler(t, nil)(w, r)
	})

	manager := token.NewInMemoryTokenManager()
	require.NoError(t, manager.SaveTokens(token.OAuthTokens{
		AccessToken: "tok_live", ExpiresAt: time.Now().Add(time.Hour),
	}))

	p := WithConfig(AnthropicOAuthConfig().WithBaseURL(srv.URL)).WithTokenManager(manager)
	request := rlm.NewCompletionRequest("claude-sonnet", []rlm.Message{rlm.UserMessage("hi")}, 100)

	_, err := p.Forward(context.Background(), request, "")
	require.NoError(t, err)
	require.Equal(t, "Bearer tok_live", gotAuth)
}

func TestForward_OAuthWithFallback_NoTokensUsesAPIKey(t *testing.T) {
	var gotAuth string
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		echoHandler(t, nil)(w, r)
	})

	p := WithConfig(AnthropicOAuthConfig().WithBaseURL(srv.URL))
	request := rlm.NewCompletionRequest("claude-sonnet", []rlm.Message{rlm.UserMessage("hi")}, 100)

	_, err := p.Forward(context.Background(), request, "sk-fallback")
	require.NoError(t, err)
	require.Equal(t, "Bearer sk-fallback", gotAuth)
}

func TestForward_OAuthWithFallback_NoCredentialsErrors(t *testing.T) {
	srv := testServer(t, echoHandler(t, nil))
	p := WithConfig(AnthropicOAuthConfig().WithBaseURL(srv.URL))
	request := rlm.NewCompletionRequest("claude-sonnet", nil, 100)

	_, err := p.Forward(context.Background(), request, "")
	require.Error(t, err)
}

func TestForward_InjectsClaudeCodeSystemPrompt(t *testing.T) {
	var captured map[string]interface{}
	srv := testServer(t, echoHandler(t, &captured))

	manager := token.NewInMemoryTokenManager()
	require.NoError(t, manager.SaveTokens(token.OAuthTokens{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}))

	p := WithConfig(AnthropicOAuthConfig().WithBaseURL(srv.URL)).WithTokenManager(manager)
	request := rlm.NewCompletionRequest("claude-sonnet", []rlm.Message{rlm.UserMessage("hi")}, 100).
		WithSystem("be concise")

	_, err := p.Forward(context.Background(), request, "")
	require.NoError(t, err)

	system, ok := captured["system"].([]interface{})
	require.True(t, ok)
	require.Len(t, system, 2)
	first := system[0].(map[string]interface{})
	require.Equal(t, claudeCodeSystemPrompt, first["text"])
	second := system[1].(map[string]interface{})
	require.Equal(t, "be concise", second["text"])
}

func TestForward_DoesNotDuplicateClaudeCodePrompt(t *testing.T) {
	var captured map[string]interface{}
	srv := testServer(t, echoHandler(t, &captured))

	manager := token.NewInMemoryTokenManager()
	require.NoError(t, manager.SaveTokens(token.OAuthTokens{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}))

	p := WithConfig(AnthropicOAuthConfig().WithBaseURL(srv.URL)).WithTokenManager(manager)
	request := rlm.NewCompletionRequest("claude-sonnet", []rlm.Message{rlm.UserMessage("hi")}, 100).
		WithSystem(claudeCodeSystemPrompt)

	_, err := p.Forward(context.Background(), request, "")
	require.NoError(t, err)

	system := captured["system"].([]interface{})
	require.Len(t, system, 1)
}

func TestForward_NoSystemPromptInjectionForAPIKeyMode(t *testing.T) {
	var captured map[string]interface{}
	srv := testServer(t, echoHandler(t, &captured))

	p := NewWithBaseURL(srv.URL)
	request := rlm.NewCompletionRequest("claude-sonnet", []rlm.Message{rlm.UserMessage("hi")}, 100)

	_, err := p.Forward(context.Background(), request, "sk-test")
	require.NoError(t, err)
	require.Nil(t, captured["system"])
}

func TestForwardRaw_WhitelistsFields(t *testing.T) {
	var captured map[string]interface{}
	srv := testServer(t, echoHandler(t, &captured))

	p := NewWithBaseURL(srv.URL)
	raw := map[string]interface{}{
		"model":              "claude-sonnet",
		"max_tokens":         float64(100),
		"messages":           []interface{}{},
		"context_management": map[string]interface{}{"strategy": "prune"},
		"unknown_field":      "drop me",
	}

	_, err := p.ForwardRaw(context.Background(), raw, "sk-test")
	require.NoError(t, err)
	require.Contains(t, captured, "model")
	require.Contains(t, captured, "max_tokens")
	require.NotContains(t, captured, "context_management")
	require.NotContains(t, captured, "unknown_field")
}

func TestForwardRaw_RejectsStreaming(t *testing.T) {
	p := NewAnthropic()
	raw := map[string]interface{}{"stream": true}

	_, err := p.ForwardRaw(context.Background(), raw, "sk-test")
	require.ErrorIs(t, err, ErrStreamingRawOnly)
}

func TestForwardRaw_InjectsSystemPromptWhenStringForm(t *testing.T) {
	var captured map[string]interface{}
	srv := testServer(t, echoHandler(t, &captured))

	manager := token.NewInMemoryTokenManager()
	require.NoError(t, manager.SaveTokens(token.OAuthTokens{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}))
	p := WithConfig(AnthropicOAuthConfig().WithBaseURL(srv.URL)).WithTokenManager(manager)

	raw := map[string]interface{}{
		"model":    "claude-sonnet",
		"messages": []interface{}{},
		"system":   "be concise",
	}

	_, err := p.ForwardRaw(context.Background(), raw, "")
	require.NoError(t, err)

	system := captured["system"].([]interface{})
	require.Len(t, system, 2)
	first := system[0].(map[string]interface{})
	require.Equal(t, claudeCodeSystemPrompt, first["text"])
}

func TestForwardRawStream_ReturnsLiveResponse(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data: {\"type\":\"message_start\"}\n\n"))
	})

	p := NewWithBaseURL(srv.URL)
	raw := map[string]interface{}{"model": "claude-sonnet", "stream": true}

	resp, err := p.ForwardRawStream(context.Background(), raw, "sk-test")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestForward_UpstreamErrorStatus(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request"}}`))
	})

	p := NewWithBaseURL(srv.URL)
	request := rlm.NewCompletionRequest("claude-sonnet", nil, 100)

	_, err := p.Forward(context.Background(), request, "sk-test")
	require.Error(t, err)
}

func TestConfig_Factories(t *testing.T) {
	require.Equal(t, AuthAPIKey, AnthropicConfig().AuthMode)
	require.Equal(t, AuthOAuthWithFallback, AnthropicOAuthConfig().AuthMode)
	require.Equal(t, DefaultConfig().AuthMode, AnthropicOAuthConfig().AuthMode)
	require.Equal(t, AuthAPIKey, OpenAIConfig().AuthMode)
	require.Equal(t, "https://example.internal", CustomConfig("https://example.internal").BaseURL)
}

func TestConfig_Builders(t *testing.T) {
	cfg := AnthropicConfig().
		WithBaseURL("https://custom.example").
		WithMessagesPath("/v2/messages").
		WithAuthHeader("X-Custom-Auth").
		WithHeader("x-extra", "1").
		WithAuthMode(AuthOAuth).
		WithSystemPromptInjection(true)

	require.Equal(t, "https://custom.example", cfg.BaseURL)
	require.Equal(t, "/v2/messages", cfg.MessagesPath)
	require.Equal(t, "X-Custom-Auth", cfg.AuthHeader)
	require.Equal(t, "1", cfg.ExtraHeaders["x-extra"])
	require.Equal(t, AuthOAuth, cfg.AuthMode)
	require.True(t, cfg.InjectSystemPrompt)
}

func TestInjectClaudeCodeSystemPrompt(t *testing.T) {
	result := injectClaudeCodeSystemPrompt(nil)
	require.Len(t, result, 1)
	require.Equal(t, claudeCodeSystemPrompt, result[0].Text)

	existing := []systemMessage{systemText("custom")}
	result = injectClaudeCodeSystemPrompt(existing)
	require.Len(t, result, 2)
	require.Equal(t, claudeCodeSystemPrompt, result[0].Text)
	require.Equal(t, "custom", result[1].Text)

	already := []systemMessage{systemText(claudeCodeSystemPrompt)}
	result = injectClaudeCodeSystemPrompt(already)
	require.Len(t, result, 1)
}
