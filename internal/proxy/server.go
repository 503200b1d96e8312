// Package proxy implements the HTTP server coding-agent clients talk
// to: it receives Anthropic-Messages-shaped requests, decides (via
// internal/router) whether each one should go straight through to the
// upstream provider or be intercepted by the recursive exploration
// engine in internal/rlm, and maps whatever comes back - or whatever
// goes wrong - onto the wire protocol the client expects.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/colliery-io/muninn/internal/observability"
	"github.com/colliery-io/muninn/internal/passthrough"
	"github.com/colliery-io/muninn/internal/rlm"
	"github.com/colliery-io/muninn/internal/router"
	"github.com/colliery-io/muninn/internal/tracing"
)

// Deps collects everything the server dispatches requests through.
// Observability and Traces are optional: a nil Observability disables
// the /metrics route and request-latency recording, a nil Traces skips
// writing the per-request trace artifact.
type Deps struct {
	Router        *router.Router
	Engine        *rlm.RecursiveEngine
	Passthrough   *passthrough.Passthrough
	Observability *observability.Manager
	Traces        *tracing.Writer
}

// Server is Muninn's HTTP proxy: a config-driven wrapper around
// http.Server with a chi router and graceful shutdown, in the shape of
// the teacher's own HTTP server construction.
type Server struct {
	httpServer    *http.Server
	deps          Deps
	shutdownGrace time.Duration
}

// NewServer builds a Server listening on addr (host:port).
func NewServer(addr string, shutdownGrace time.Duration, deps Deps) *Server {
	s := &Server{deps: deps, shutdownGrace: shutdownGrace}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	if s.deps.Observability != nil {
		r.Use(observability.HTTPMiddleware(s.deps.Observability.Metrics()))
	}

	r.Post("/v1/messages", s.handleMessages)
	r.Get("/health", s.handleHealth)
	if s.deps.Observability != nil && s.deps.Observability.MetricsEnabled() {
		r.Get(s.deps.Observability.MetricsEndpoint(), s.deps.Observability.MetricsHandler().ServeHTTP)
	}
	return r
}

// Start runs the server until ctx is canceled, then performs a graceful
// shutdown. Mirrors the errCh+ctx.Done() select pattern used throughout
// this codebase's other long-running components.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("proxy: listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(ctx)
	}
}

// Shutdown drains in-flight requests, bounded by shutdownGrace.
func (s *Server) Shutdown(ctx context.Context) error {
	grace := s.shutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	slog.Info("proxy: shutting down", "grace", grace)
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, NewInvalidRequestError("reading request body: %v", err))
		return
	}

	apiKey := r.Header.Get("x-api-key")
	if apiKey == "" {
		if auth := r.Header.Get("Authorization"); auth != "" {
			apiKey = auth
		}
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, NewInvalidRequestError("request body is not valid JSON: %v", err))
		return
	}

	streaming, _ := raw["stream"].(bool)
	recursiveRequested := extractRecursiveFlag(raw)

	if streaming {
		if recursiveRequested {
			writeError(w, NewInvalidRequestError("streaming is not supported for recursive (muninn.recursive=true) requests"))
			return
		}
		s.handleStream(w, r, raw, apiKey)
		return
	}

	ctx, collector := tracing.Start(r.Context())
	tracing.StartSpan(ctx, "request")

	var typed rlm.CompletionRequest
	typedOK := json.Unmarshal(body, &typed) == nil

	var resp rlm.CompletionResponse
	var rawResp map[string]interface{}
	var dispatchErr error

	switch {
	case typedOK && rlm.IsRecursive(typed):
		tracing.AddMetadata(ctx, "route", "rlm_direct")
		resp, dispatchErr = s.completeRLM(ctx, typed)

	case typedOK:
		decision := s.deps.Router.Route(ctx, typed)
		tracing.AddMetadata(ctx, "route", string(decision.Route))
		tracing.AddMetadata(ctx, "route_reason", decision.Reason)
		switch decision.Route {
		case router.RoutePassthrough:
			rawResp, dispatchErr = s.deps.Passthrough.ForwardRaw(ctx, raw, apiKey)
		default:
			resp, dispatchErr = s.completeRLM(ctx, typed)
		}

	default:
		tracing.AddMetadata(ctx, "route", "passthrough_unparsed")
		rawResp, dispatchErr = s.deps.Passthrough.ForwardRaw(ctx, raw, apiKey)
	}

	if dispatchErr != nil {
		tracing.EndSpanError(ctx, dispatchErr.Error())
		s.finalizeTrace(collector)
		writeError(w, dispatchErr)
		return
	}
	tracing.EndSpanOK(ctx)
	s.finalizeTrace(collector)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if rawResp != nil {
		_ = json.NewEncoder(w).Encode(rawResp)
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) completeRLM(ctx context.Context, request rlm.CompletionRequest) (rlm.CompletionResponse, error) {
	if s.deps.Engine == nil {
		return rlm.CompletionResponse{}, NewConfigError("no RLM engine configured; check rlm.provider credentials and run 'muninn oauth authenticate' if needed")
	}
	start := time.Now()
	resp, err := s.deps.Engine.Complete(ctx, request)
	if s.deps.Observability != nil {
		s.deps.Observability.Metrics().RecordExploration(ctx, time.Since(start))
	}
	return resp, err
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, raw map[string]interface{}, apiKey string) {
	upstream, err := s.deps.Passthrough.ForwardRawStream(r.Context(), raw, apiKey)
	if err != nil {
		writeError(w, err)
		return
	}
	defer upstream.Body.Close()

	for key, values := range upstream.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(upstream.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, readErr := upstream.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			return
		}
	}
}

func (s *Server) finalizeTrace(collector *tracing.Collector) {
	if s.deps.Traces == nil || collector == nil {
		return
	}
	trace := collector.Finalize()
	if err := s.deps.Traces.Write(trace); err != nil {
		slog.Warn("proxy: failed to write trace", "error", err)
	}
}

// extractRecursiveFlag reads raw["muninn"]["recursive"] without requiring
// the request to parse into rlm.CompletionRequest, so the streaming
// short-circuit in handleMessages works even on bodies the typed
// decoder would reject.
func extractRecursiveFlag(raw map[string]interface{}) bool {
	muninnBlock, ok := raw["muninn"].(map[string]interface{})
	if !ok {
		return false
	}
	recursive, _ := muninnBlock["recursive"].(bool)
	return recursive
}

// errorResponse mirrors the Anthropic Messages API's error envelope.
type errorResponse struct {
	Type  string      `json:"type"`
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status, body := mapError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// mapError translates an error raised anywhere in the dispatch path
// into an HTTP status and an Anthropic-shaped error body.
func mapError(err error) (int, []byte) {
	var budgetErr *rlm.BudgetExceededError
	if errors.As(err, &budgetErr) {
		return http.StatusOK, marshalError("budget_exceeded", err.Error())
	}

	var invalidErr *InvalidRequestError
	if errors.As(err, &invalidErr) {
		return http.StatusBadRequest, marshalError("invalid_request_error", err.Error())
	}

	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return http.StatusInternalServerError, marshalError("config_error", err.Error())
	}

	var upstreamErr *passthrough.UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.StatusCode, marshalError("api_error", err.Error())
	}

	var backendErr *rlm.BackendError
	if errors.As(err, &backendErr) {
		return http.StatusBadGateway, marshalError("api_error", err.Error())
	}

	return http.StatusBadGateway, marshalError("api_error", err.Error())
}

func marshalError(errType, message string) []byte {
	body, _ := json.Marshal(errorResponse{
		Type:  "error",
		Error: errorDetail{Type: errType, Message: message},
	})
	return body
}
