package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the OTel instruments Muninn records against, exported
// through the OTel Prometheus bridge rather than a bespoke registry.
type Metrics struct {
	config   *MetricsConfig
	registry *promclient.Registry
	provider *sdkmetric.MeterProvider

	httpRequests *instrumentCounter
	httpDuration metric.Float64Histogram

	toolCalls    *instrumentCounter
	toolDuration metric.Float64Histogram

	budgetExceeded *instrumentCounter

	explorationDuration metric.Float64Histogram
}

// instrumentCounter is a thin wrapper so callers don't repeat
// metric.WithAttributes boilerplate at every call site.
type instrumentCounter struct {
	counter metric.Int64Counter
}

func (c *instrumentCounter) add(ctx context.Context, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// NewMetrics builds the OTel meter provider, wires it to a Prometheus
// registry via the OTel Prometheus exporter, and creates every instrument
// Muninn records. Returns (nil, nil) when metrics are disabled.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry), otelprom.WithNamespace(cfg.Namespace))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("muninn/proxy")

	m := &Metrics{config: cfg, registry: registry, provider: provider}

	httpRequests, err := meter.Int64Counter("http_requests_total", metric.WithDescription("Total HTTP requests handled by the proxy"))
	if err != nil {
		return nil, err
	}
	m.httpRequests = &instrumentCounter{counter: httpRequests}

	m.httpDuration, err = meter.Float64Histogram("http_request_duration_seconds", metric.WithDescription("HTTP request latency"))
	if err != nil {
		return nil, err
	}

	toolCalls, err := meter.Int64Counter("tool_calls_total", metric.WithDescription("Total tool executions, labeled by tool and outcome"))
	if err != nil {
		return nil, err
	}
	m.toolCalls = &instrumentCounter{counter: toolCalls}

	m.toolDuration, err = meter.Float64Histogram("tool_call_duration_seconds", metric.WithDescription("Tool execution latency"))
	if err != nil {
		return nil, err
	}

	budgetExceeded, err := meter.Int64Counter("budget_exceeded_total", metric.WithDescription("Explorations terminated by a budget ceiling, labeled by budget type"))
	if err != nil {
		return nil, err
	}
	m.budgetExceeded = &instrumentCounter{counter: budgetExceeded}

	m.explorationDuration, err = meter.Float64Histogram("rlm_exploration_duration_seconds", metric.WithDescription("Wall-clock duration of a completed RLM exploration"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordHTTPRequest records one proxied HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", statusCodeLabel(statusCode)),
	}
	m.httpRequests.add(ctx, attrs...)
	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
	))
}

// RecordToolCall records one tool execution.
func (m *Metrics) RecordToolCall(ctx context.Context, toolName, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.add(ctx, attribute.String("tool", toolName), attribute.String("outcome", outcome))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("tool", toolName)))
}

// RecordBudgetExceeded records an exploration terminated by a budget ceiling.
func (m *Metrics) RecordBudgetExceeded(ctx context.Context, budgetType string) {
	if m == nil {
		return
	}
	m.budgetExceeded.add(ctx, attribute.String("budget_type", budgetType))
}

// RecordExploration records the wall-clock duration of one completed
// RLM exploration, successful or not.
func (m *Metrics) RecordExploration(ctx context.Context, duration time.Duration) {
	if m == nil {
		return
	}
	m.explorationDuration.Record(ctx, duration.Seconds())
}

func statusCodeLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Handler returns the HTTP handler Prometheus scrapes.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and releases the underlying meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
