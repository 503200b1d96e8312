// Package observability wires Muninn's process-level metrics: OpenTelemetry
// instruments exported through the OTel Prometheus bridge, plus the HTTP
// middleware that records them per request. The separate, per-request
// traces.jsonl artifact lives in internal/tracing and is written
// independently of this package — it is a product artifact for the CLI
// user, not a metrics pipeline.
package observability

import "fmt"

// Config configures the observability system.
type Config struct {
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// MetricsConfig configures the Prometheus-exposed OTel metrics.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the /metrics endpoint.
	Enabled bool `yaml:"enabled,omitempty"`

	// Endpoint is the path to expose metrics on. Default: "/metrics".
	Endpoint string `yaml:"endpoint,omitempty"`

	// Namespace prefixes every metric name. Default: "muninn".
	Namespace string `yaml:"namespace,omitempty"`
}

const (
	// DefaultMetricsPath is where metrics are served when not overridden.
	DefaultMetricsPath = "/metrics"

	// DefaultNamespace prefixes every metric name absent an override.
	DefaultNamespace = "muninn"
)

// SetDefaults applies default values to Config.
func (c *Config) SetDefaults() {
	c.Metrics.SetDefaults()
}

// Validate checks the Config for errors.
func (c *Config) Validate() error {
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// SetDefaults applies default values to MetricsConfig.
func (c *MetricsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultMetricsPath
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
}

// Validate checks MetricsConfig for errors.
func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when metrics are enabled")
	}
	return nil
}
