package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewManager_NilConfigDisablesMetrics(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)
	require.False(t, m.MetricsEnabled())
	require.Equal(t, DefaultMetricsPath, m.MetricsEndpoint())
}

func TestNewManager_MetricsEnabled(t *testing.T) {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	require.True(t, m.MetricsEnabled())
	require.NotNil(t, m.Metrics())

	defer func() { _ = m.Shutdown(context.Background()) }()
}

func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer func() { _ = m.Shutdown(context.Background()) }()

	m.Metrics().RecordToolCall(context.Background(), "read_file", "ok", 5*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "tool_calls_total")
}

func TestMetricsHandler_DisabledReturns503(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPMiddleware_RecordsRequest(t *testing.T) {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer func() { _ = m.Shutdown(context.Background()) }()

	handler := HTTPMiddleware(m.Metrics())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(metricsRec, metricsReq)
	require.Contains(t, metricsRec.Body.String(), "http_requests_total")
}

func TestHTTPMiddleware_NilMetricsIsNoop(t *testing.T) {
	handler := HTTPMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestConfig_Validate_PassesOnceDefaultsFillEndpoint(t *testing.T) {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true, Endpoint: ""}}
	cfg.Metrics.SetDefaults()
	require.NoError(t, cfg.Validate())
}
