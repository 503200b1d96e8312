package rlm

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers may want to match with errors.Is.
var (
	ErrNoMoreResponses = errors.New("mock backend: no more responses available")
)

// BudgetType identifies which exploration budget was exceeded.
type BudgetType string

const (
	BudgetTokens    BudgetType = "tokens"
	BudgetDuration  BudgetType = "duration"
	BudgetDepth     BudgetType = "depth"
	BudgetToolCalls BudgetType = "tool_calls"
)

// BudgetExceededError reports which budget tripped and by how much.
type BudgetExceededError struct {
	Type   BudgetType
	Limit  uint64
	Actual uint64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s budget exceeded: %d > %d", e.Type, e.Actual, e.Limit)
}

func NewBudgetExceededError(t BudgetType, limit, actual uint64) *BudgetExceededError {
	return &BudgetExceededError{Type: t, Limit: limit, Actual: actual}
}

// BackendError wraps a failure from an LLMBackend implementation.
type BackendError struct {
	Backend string
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %q: %s", e.Backend, e.Message)
}

func NewBackendError(backend, message string) *BackendError {
	return &BackendError{Backend: backend, Message: message}
}

// ToolExecutionError wraps a failure raised while executing a tool call.
type ToolExecutionError struct {
	Tool    string
	Message string
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q: %s", e.Tool, e.Message)
}

func NewToolExecutionError(tool, message string) *ToolExecutionError {
	return &ToolExecutionError{Tool: tool, Message: message}
}

// IsRetryable reports whether an error from an LLMBackend call should be
// retried with backoff. Only network-shaped failures are retryable;
// malformed requests, serialization failures, and tool errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr *BackendError
	if errors.As(err, &netErr) {
		return false
	}
	return errors.Is(err, errTransient)
}

// errTransient is wrapped by backend implementations around genuine
// network-level failures (connection refused, timeout, DNS) so that
// IsRetryable can distinguish them from application-level backend errors.
var errTransient = errors.New("transient network error")

// MarkTransient wraps err so that IsRetryable reports true for it.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", errTransient, err)
}
