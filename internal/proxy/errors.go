package proxy

import "fmt"

// InvalidRequestError reports a malformed or unsupported request shape
// the proxy rejects before dispatching it anywhere (bad JSON, a
// streaming request against an RLM-bound body).
type InvalidRequestError struct {
	Message string
}

func (e *InvalidRequestError) Error() string { return e.Message }

func NewInvalidRequestError(format string, args ...any) *InvalidRequestError {
	return &InvalidRequestError{Message: fmt.Sprintf(format, args...)}
}

// ConfigError reports a missing or invalid piece of server-side
// configuration discovered while handling a request (no credentials
// for the resolved provider, no backend configured for the RLM
// provider named in config).
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}
