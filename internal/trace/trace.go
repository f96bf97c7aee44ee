// Package trace carries W3C-style trace and span IDs through context.Context
// and decorates slog loggers with them plus the job being processed.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"
)

// Metadata keys for gRPC/HTTP propagation.
const (
	TraceIDKey      = "x-trace-id"
	SpanIDKey       = "x-span-id"
	ParentSpanIDKey = "x-parent-span-id"
)

type (
	traceKey struct{}
	jobKey   struct{}
	stageKey struct{}
)

// Context holds trace identifiers for a single span.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// New creates a new trace context with fresh IDs.
func New() Context {
	return Context{TraceID: generateTraceID(), SpanID: generateSpanID()}
}

// NewChild creates a child context from parent.
func NewChild(parent Context) Context {
	return Context{
		TraceID:      parent.TraceID,
		SpanID:       generateSpanID(),
		ParentSpanID: parent.SpanID,
	}
}

// FromContext extracts the trace context.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(traceKey{}).(Context)
	return tc, ok
}

// WithContext injects a trace context.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, traceKey{}, tc)
}

// EnsureContext returns the existing trace context or starts a new trace.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := New()
	return WithContext(ctx, tc), tc
}

// WithJob tags ctx with the conversation being processed.
func WithJob(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, jobKey{}, conversationID)
}

// JobFromContext returns the conversation id set by WithJob.
func JobFromContext(ctx context.Context) string {
	id, _ := ctx.Value(jobKey{}).(string)
	return id
}

// WithStage tags ctx with the pipeline stage being executed.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFromContext returns the stage set by WithStage.
func StageFromContext(ctx context.Context) string {
	s, _ := ctx.Value(stageKey{}).(string)
	return s
}

// 128-bit trace ID.
func generateTraceID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// 64-bit span ID.
func generateSpanID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Span is a timed operation within a trace.
type Span struct {
	Name      string
	Ctx       Context
	StartTime time.Time
	EndTime   time.Time
	Attrs     map[string]any

	logger *slog.Logger
}

// StartSpan begins a child span of whatever trace ctx carries, or a new trace.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	tc := New()
	if parent, ok := FromContext(ctx); ok {
		tc = NewChild(parent)
	}
	ctx = WithContext(ctx, tc)
	return ctx, &Span{
		Name:      name,
		Ctx:       tc,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
		logger:    Logger(ctx),
	}
}

// SetAttr sets a span attribute.
func (s *Span) SetAttr(key string, val any) { s.Attrs[key] = val }

// End marks the span complete and logs it at debug level.
func (s *Span) End() {
	s.EndTime = time.Now()
	s.logger.Debug("span finished", "span", s)
}

// Duration returns the span duration, zero while the span is open.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// LogValue implements slog.LogValuer.
func (s *Span) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("name", s.Name),
		slog.Duration("duration", s.Duration()),
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, slog.Any(k, v))
	}
	return slog.GroupValue(attrs...)
}

// Logger returns slog.Default() enriched with the trace, job and stage in ctx.
func Logger(ctx context.Context) *slog.Logger {
	args := make([]any, 0, 10)
	if tc, ok := FromContext(ctx); ok {
		args = append(args, "trace_id", tc.TraceID, "span_id", tc.SpanID)
		if tc.ParentSpanID != "" {
			args = append(args, "parent_span_id", tc.ParentSpanID)
		}
	}
	if id := JobFromContext(ctx); id != "" {
		args = append(args, "conversation_id", id)
	}
	if stage := StageFromContext(ctx); stage != "" {
		args = append(args, "stage", stage)
	}
	if len(args) == 0 {
		return slog.Default()
	}
	return slog.Default().With(args...)
}
