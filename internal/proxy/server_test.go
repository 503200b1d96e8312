package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/colliery-io/muninn/internal/observability"
	"github.com/colliery-io/muninn/internal/passthrough"
	"github.com/colliery-io/muninn/internal/rlm"
	"github.com/colliery-io/muninn/internal/router"
	"github.com/colliery-io/muninn/internal/tools"
	"github.com/colliery-io/muninn/internal/tracing"
)

func newTestEngine(t *testing.T, responses []rlm.CompletionResponse) *rlm.RecursiveEngine {
	t.Helper()
	backend := rlm.NewMockBackend(responses)
	env := tools.NewEnvironment(tools.NewRegistry())
	return rlm.NewRecursiveEngineFromComponents(backend, env)
}

func newTestServer(t *testing.T, upstream *httptest.Server, engine *rlm.RecursiveEngine, strategy router.Strategy) (*Server, *tracing.Writer) {
	t.Helper()

	pt := passthrough.NewWithBaseURL(upstream.URL)
	r := router.New(strategy)

	obsManager, err := observability.NewManager(&observability.Config{Metrics: observability.MetricsConfig{Enabled: true}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = obsManager.Shutdown(context.Background()) })

	traceFile := filepath.Join(t.TempDir(), "traces.jsonl")
	writer, err := tracing.NewWriter(tracing.SessionWriterConfig(traceFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	srv := NewServer("127.0.0.1:0", 5*time.Second, Deps{
		Router:        r,
		Engine:        engine,
		Passthrough:   pt,
		Observability: obsManager,
		Traces:        writer,
	})
	return srv, writer
}

func TestHandleMessages_AlwaysPassthrough_ForwardsToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"hi"}],"model":"claude","stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream, newTestEngine(t, nil), router.StrategyAlwaysPassthrough)

	body := []byte(`{"model":"claude-sonnet","max_tokens":100,"messages":[{"role":"user","content":"hello"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	req.Header.Set("x-api-key", "sk-test")
	rec := httptest.NewRecorder()

	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "msg_1")
}

func TestHandleMessages_RecursiveFlag_DispatchesToEngine(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be called for a recursive request")
	}))
	defer upstream.Close()

	response := rlm.NewCompletionResponse("msg_rlm", "claude", []rlm.ContentBlock{rlm.TextBlock("final answer")}, rlm.StopEndTurn, rlm.NewUsage(10, 5))
	engine := newTestEngine(t, []rlm.CompletionResponse{response})

	srv, writer := newTestServer(t, upstream, engine, router.StrategyAlwaysPassthrough)

	body := []byte(`{"model":"claude-sonnet","max_tokens":100,"messages":[{"role":"user","content":"explore the graph module"}],"muninn":{"recursive":true}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "final answer")

	files, err := writer.ListTraceFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	traces, err := tracing.ReadTraces(files[0])
	require.NoError(t, err)
	require.Len(t, traces, 1)
}

func TestMapError_BudgetExceeded_Returns200WithErrorBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	// A zero tool-call budget forces the very first tool_use response to
	// trip the depth ceiling via forced termination, not an actual
	// budget_exceeded error - so instead we drive the budget check
	// directly by giving the exploration an already-exhausted duration
	// budget via a mock backend that never completes in time is overkill
	// for a unit test; exercise mapError's budget branch directly instead.
	engine := newTestEngine(t, nil)
	srv, _ := newTestServer(t, upstream, engine, router.StrategyAlwaysPassthrough)

	status, body := mapError(rlm.NewBudgetExceededError(rlm.BudgetTokens, 100, 150))
	require.Equal(t, http.StatusOK, status)

	var decoded errorResponse
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Equal(t, "error", decoded.Type)
	require.Equal(t, "budget_exceeded", decoded.Error.Type)

	_ = srv
}

func TestHandleMessages_MalformedJSON_Returns400(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream, newTestEngine(t, nil), router.StrategyAlwaysPassthrough)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMessages_StreamingRecursiveRequest_Returns400(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream, newTestEngine(t, nil), router.StrategyAlwaysPassthrough)

	body := []byte(`{"model":"claude","stream":true,"muninn":{"recursive":true}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth_Returns200(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream, newTestEngine(t, nil), router.StrategyAlwaysPassthrough)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleMetrics_ServesPrometheusFormat(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream, newTestEngine(t, nil), router.StrategyAlwaysPassthrough)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMapError_UpstreamError_PreservesStatusCode(t *testing.T) {
	status, body := mapError(&passthrough.UpstreamError{StatusCode: http.StatusTooManyRequests, Body: "rate limited"})
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Contains(t, string(body), "rate limited")
}

func TestMapError_ConfigError_Returns500(t *testing.T) {
	status, _ := mapError(NewConfigError("missing credentials for provider %q", "anthropic"))
	require.Equal(t, http.StatusInternalServerError, status)
}
