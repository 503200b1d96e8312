package tracing

import (
	"context"
	"sync"
	"time"
)

// Collector accumulates spans into a Trace over the lifetime of one
// request. Spans nest via a stack: StartSpan pushes, EndSpanOK/
// EndSpanError pops and attaches the completed span either to the new
// stack top (as a child) or to the trace itself (as a top-level span).
//
// Go has no equivalent of Rust's task-local storage, so instead of an
// implicit per-task collector, callers carry a *Collector explicitly
// through a context.Context (see WithCollector/FromContext) and the
// package-level helpers below look it up from ctx on every call.
type Collector struct {
	mu    sync.Mutex
	trace *Trace
	stack []*Span
}

// NewCollector creates a collector with a random trace ID.
func NewCollector() *Collector {
	return &Collector{trace: NewTraceRandom()}
}

// NewCollectorWithTraceID creates a collector for a specific trace ID.
func NewCollectorWithTraceID(traceID string) *Collector {
	return &Collector{trace: NewTrace(traceID)}
}

// TraceID returns the trace ID this collector is building.
func (c *Collector) TraceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trace.TraceID
}

// AddMetadata attaches trace-level metadata.
func (c *Collector) AddMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trace.WithMetadata(key, value)
}

// StartSpan pushes a new span onto the stack. Must be paired with
// EndSpanOK or EndSpanError.
func (c *Collector) StartSpan(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stack = append(c.stack, NewSpan(name))
}

// StartSpanWithData pushes a new span with attached domain data.
func (c *Collector) StartSpanWithData(name string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stack = append(c.stack, NewSpan(name).WithData(data))
}

// RecordEvent records an event against the innermost open span. A
// no-op if no span is open.
func (c *Collector) RecordEvent(name string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if top := c.top(); top != nil {
		top.RecordEvent(name, data)
	}
}

// SetCurrentTiming sets the timing breakdown of the innermost open
// span. A no-op if no span is open.
func (c *Collector) SetCurrentTiming(timing Timing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if top := c.top(); top != nil {
		top.SetTiming(timing)
	}
}

// EndSpanOK pops the innermost open span, marks it successful, and
// attaches it to its parent (or the trace, if it was top-level).
func (c *Collector) EndSpanOK() {
	c.mu.Lock()
	defer c.mu.Unlock()
	span, ok := c.pop()
	if !ok {
		return
	}
	span.CompleteOK()
	c.attach(span)
}

// EndSpanError pops the innermost open span, marks it failed with the
// given message, and attaches it to its parent (or the trace).
func (c *Collector) EndSpanError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	span, ok := c.pop()
	if !ok {
		return
	}
	span.CompleteError(message)
	c.attach(span)
}

// AddSpan attaches an already-complete span directly, bypassing the
// stack.
func (c *Collector) AddSpan(span *Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attach(span)
}

func (c *Collector) top() *Span {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

func (c *Collector) pop() (*Span, bool) {
	if len(c.stack) == 0 {
		return nil, false
	}
	span := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return span, true
}

// attach must be called with mu held.
func (c *Collector) attach(span *Span) {
	if parent := c.top(); parent != nil {
		parent.AddChild(span)
		return
	}
	c.trace.AddSpan(span)
}

// Finalize force-closes any spans left open (as errors, since an
// unclosed span indicates a bug or a panic recovery path) and returns
// the completed trace. The collector must not be reused afterward.
func (c *Collector) Finalize() *Trace {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		span, ok := c.pop()
		if !ok {
			break
		}
		span.CompleteError("span not explicitly closed")
		c.attach(span)
	}
	c.trace.Complete()
	return c.trace
}

// Elapsed returns wall-clock time since the trace started.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.trace.StartedAt)
}

type contextKey struct{}

// WithCollector returns a context carrying the given collector, for
// the package-level helpers below to find.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the collector carried by ctx, if any.
func FromContext(ctx context.Context) (*Collector, bool) {
	c, ok := ctx.Value(contextKey{}).(*Collector)
	return c, ok
}

// Start creates a new collector with a random trace ID and returns a
// context carrying it.
func Start(ctx context.Context) (context.Context, *Collector) {
	c := NewCollector()
	return WithCollector(ctx, c), c
}

// StartWithTraceID creates a new collector for a specific trace ID and
// returns a context carrying it.
func StartWithTraceID(ctx context.Context, traceID string) (context.Context, *Collector) {
	c := NewCollectorWithTraceID(traceID)
	return WithCollector(ctx, c), c
}

// IsActive reports whether ctx carries a collector.
func IsActive(ctx context.Context) bool {
	_, ok := FromContext(ctx)
	return ok
}

// AddMetadata records trace-level metadata against the collector
// carried by ctx. A no-op if tracing is not active.
func AddMetadata(ctx context.Context, key string, value any) {
	if c, ok := FromContext(ctx); ok {
		c.AddMetadata(key, value)
	}
}

// StartSpan opens a span against the collector carried by ctx. A
// no-op if tracing is not active.
func StartSpan(ctx context.Context, name string) {
	if c, ok := FromContext(ctx); ok {
		c.StartSpan(name)
	}
}

// StartSpanWithData opens a span with attached data against the
// collector carried by ctx. A no-op if tracing is not active.
func StartSpanWithData(ctx context.Context, name string, data any) {
	if c, ok := FromContext(ctx); ok {
		c.StartSpanWithData(name, data)
	}
}

// RecordEvent records an event in the current span of the collector
// carried by ctx. A no-op if tracing is not active.
func RecordEvent(ctx context.Context, name string, data any) {
	if c, ok := FromContext(ctx); ok {
		c.RecordEvent(name, data)
	}
}

// SetTiming sets the current span's timing breakdown for the
// collector carried by ctx. A no-op if tracing is not active.
func SetTiming(ctx context.Context, timing Timing) {
	if c, ok := FromContext(ctx); ok {
		c.SetCurrentTiming(timing)
	}
}

// EndSpanOK closes the current span successfully for the collector
// carried by ctx. A no-op if tracing is not active.
func EndSpanOK(ctx context.Context) {
	if c, ok := FromContext(ctx); ok {
		c.EndSpanOK()
	}
}

// EndSpanError closes the current span with an error for the
// collector carried by ctx. A no-op if tracing is not active.
func EndSpanError(ctx context.Context, message string) {
	if c, ok := FromContext(ctx); ok {
		c.EndSpanError(message)
	}
}

// CurrentTraceID returns the trace ID of the collector carried by ctx,
// if tracing is active.
func CurrentTraceID(ctx context.Context) (string, bool) {
	c, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return c.TraceID(), true
}
