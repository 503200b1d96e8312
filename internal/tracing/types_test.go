package tracing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTraceRandom_HasNonEmptyID(t *testing.T) {
	trace := NewTraceRandom()
	require.NotEmpty(t, trace.TraceID)
	require.Nil(t, trace.EndedAt)
}

func TestSpan_WithData(t *testing.T) {
	span := NewSpan("test_span").WithData(map[string]int{"value": 42})
	require.NotNil(t, span.Data)
}

func TestTrace_Serialization(t *testing.T) {
	trace := NewTrace("test-123")
	trace.WithMetadata("request_id", "abc")

	span := NewSpan("operation")
	span.RecordEvent("started", nil)
	span.CompleteOK()
	trace.AddSpan(span)
	trace.Complete()

	data, err := json.Marshal(trace)
	require.NoError(t, err)
	require.Contains(t, string(data), "test-123")
	require.Contains(t, string(data), "operation")
	require.Contains(t, string(data), `"status":"ok"`)
}

func TestSpan_CompleteError_SetsOutcomeMessage(t *testing.T) {
	span := NewSpan("op")
	span.CompleteError("boom")
	require.NotNil(t, span.Outcome)
	require.Equal(t, SpanStatusError, span.Outcome.Status)
	require.Equal(t, "boom", span.Outcome.Message)
	require.NotNil(t, span.Timing)
}

func TestTiming_WithSegment(t *testing.T) {
	timing := NewTiming(100).WithSegment("parse", 10).WithSegment("exec", 90)
	require.Equal(t, uint64(100), timing.TotalMs)
	require.Equal(t, uint64(10), timing.Segments["parse"])
	require.Equal(t, uint64(90), timing.Segments["exec"])
}
