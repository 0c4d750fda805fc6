// OpenTelemetry tracing around feed handling, commands and HTTP requests.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracing with dashboard-specific helpers.
type Tracer struct {
	tracer trace.Tracer
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a new tracer with the given name.
func NewTracer(name string) *Tracer {
	return &Tracer{
		tracer: otel.Tracer(name),
	}
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// --- Feed Spans ---

// FeedSpanOptions describes how a feed update was handled.
type FeedSpanOptions struct {
	Key      string
	Revision uint64
	Sensors  int    // sensors present in the payload
	Outcome  string // applied, empty, invalid, disconnected
}

// StartFeedSpan starts a span for one feed update.
func (t *Tracer) StartFeedSpan(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "feed.update", trace.WithSpanKind(trace.SpanKindConsumer))
}

// EndFeedSpan ends a feed span with attributes.
func (t *Tracer) EndFeedSpan(span trace.Span, opts FeedSpanOptions, err error) {
	span.SetAttributes(
		attribute.String("feed.key", opts.Key),
		attribute.Int64("feed.revision", int64(opts.Revision)),
		attribute.Int("feed.sensors", opts.Sensors),
		attribute.String("feed.outcome", opts.Outcome),
	)
	end(span, err)
}

// --- Command Spans ---

// StartCommandSpan starts a span for a control command write.
func (t *Tracer) StartCommandSpan(ctx context.Context, command, key string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "command."+command, trace.WithSpanKind(trace.SpanKindProducer))
	span.SetAttributes(
		attribute.String("command.name", command),
		attribute.String("command.key", key),
	)
	return ctx, span
}

// EndCommandSpan ends a command span.
func (t *Tracer) EndCommandSpan(span trace.Span, err error) {
	end(span, err)
}

// --- HTTP Spans ---

// StartHTTPSpan starts a server span for an HTTP route.
func (t *Tracer) StartHTTPSpan(ctx context.Context, method, route string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
	)
	return ctx, span
}

// EndHTTPSpan ends an HTTP span with the response status.
func (t *Tracer) EndHTTPSpan(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status >= 500 {
		span.SetStatus(codes.Error, "server error")
	}
	span.End()
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// --- Context Propagation ---

// InjectContext injects trace context into a carrier for cross-process propagation.
func InjectContext(ctx context.Context, carrier propagation.TextMapCarrier) {
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}

// ExtractContext extracts trace context from a carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
