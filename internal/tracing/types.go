// Package tracing records the per-request span tree Muninn writes to
// traces.jsonl, independent of the OTel metrics pipeline in
// internal/observability. It is a product artifact consumed by the CLI
// and agent developers debugging a single exploration, not a metrics
// stream: one JSON object per line, one line per completed trace.
package tracing

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Trace is one logical operation's lifecycle: a passthrough request or
// an RLM exploration, start to finish.
type Trace struct {
	TraceID    string         `json:"trace_id"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
	DurationMs *uint64        `json:"duration_ms,omitempty"`
	Spans      []*Span        `json:"spans"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewTrace creates a trace with the given ID.
func NewTrace(traceID string) *Trace {
	return &Trace{
		TraceID:   traceID,
		StartedAt: time.Now().UTC(),
		Spans:     []*Span{},
	}
}

// NewTraceRandom creates a trace with a random UUID.
func NewTraceRandom() *Trace {
	return NewTrace(uuid.NewString())
}

// WithMetadata attaches a trace-level metadata field and returns the
// trace for chaining.
func (t *Trace) WithMetadata(key string, value any) *Trace {
	if t.Metadata == nil {
		t.Metadata = make(map[string]any)
	}
	t.Metadata[key] = value
	return t
}

// Complete marks the trace as finished and computes its duration.
func (t *Trace) Complete() {
	now := time.Now().UTC()
	t.EndedAt = &now
	d := durationMs(t.StartedAt, now)
	t.DurationMs = &d
}

// AddSpan appends a top-level span to the trace.
func (t *Trace) AddSpan(span *Span) {
	t.Spans = append(t.Spans, span)
}

// Span is a named, timed operation within a trace. Spans nest via
// Children and may carry Events and domain-specific Data.
type Span struct {
	SpanID    string         `json:"span_id"`
	Name      string         `json:"name"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Timing    *Timing        `json:"timing,omitempty"`
	Data      any            `json:"data,omitempty"`
	Events    []Event        `json:"events,omitempty"`
	Children  []*Span        `json:"children,omitempty"`
	Outcome   *SpanOutcome   `json:"outcome,omitempty"`
}

// NewSpan creates a span with a random ID and a start timestamp of now.
func NewSpan(name string) *Span {
	return &Span{
		SpanID:    uuid.NewString(),
		Name:      name,
		StartedAt: time.Now().UTC(),
	}
}

// WithData attaches domain-specific data and returns the span for
// chaining.
func (s *Span) WithData(data any) *Span {
	s.Data = data
	return s
}

// CompleteOK marks the span as successfully finished.
func (s *Span) CompleteOK() {
	now := time.Now().UTC()
	s.EndedAt = &now
	s.Outcome = &SpanOutcome{Status: SpanStatusOK}
	s.calculateTiming(now)
}

// CompleteError marks the span as finished with an error.
func (s *Span) CompleteError(message string) {
	now := time.Now().UTC()
	s.EndedAt = &now
	s.Outcome = &SpanOutcome{Status: SpanStatusError, Message: message}
	s.calculateTiming(now)
}

// AddEvent appends a fully-formed event to the span.
func (s *Span) AddEvent(event Event) {
	s.Events = append(s.Events, event)
}

// RecordEvent appends an event with the given name and optional data,
// timestamped at now.
func (s *Span) RecordEvent(name string, data any) {
	s.Events = append(s.Events, Event{Name: name, Timestamp: time.Now().UTC(), Data: data})
}

// AddChild appends a nested child span.
func (s *Span) AddChild(child *Span) {
	s.Children = append(s.Children, child)
}

// SetTiming overwrites the span's timing breakdown.
func (s *Span) SetTiming(timing Timing) {
	s.Timing = &timing
}

func (s *Span) calculateTiming(ended time.Time) {
	total := durationMs(s.StartedAt, ended)
	if s.Timing != nil {
		s.Timing.TotalMs = total
		return
	}
	s.Timing = &Timing{TotalMs: total}
}

// SpanStatus is the discriminant of a SpanOutcome.
type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// SpanOutcome is the terminal result of a span's execution. Message is
// only present when Status is SpanStatusError.
type SpanOutcome struct {
	Status  SpanStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

// Event is a point-in-time occurrence within a span.
type Event struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Timing is a granular timing breakdown for a span, recording the
// total duration plus any named sub-segments the caller tracked.
type Timing struct {
	TotalMs  uint64            `json:"total_ms"`
	Segments map[string]uint64 `json:"segments,omitempty"`
}

// NewTiming creates a timing with a total and no segments.
func NewTiming(totalMs uint64) Timing {
	return Timing{TotalMs: totalMs}
}

// WithSegment records a named timing segment and returns the timing
// for chaining.
func (t Timing) WithSegment(name string, ms uint64) Timing {
	if t.Segments == nil {
		t.Segments = make(map[string]uint64)
	}
	t.Segments[name] = ms
	return t
}

func durationMs(start, end time.Time) uint64 {
	d := end.Sub(start).Milliseconds()
	if d < 0 {
		return 0
	}
	return uint64(d)
}

// MarshalJSONLine encodes the trace as a single compact JSON line,
// suitable for appending to traces.jsonl.
func (t *Trace) MarshalJSONLine() ([]byte, error) {
	return json.Marshal(t)
}
