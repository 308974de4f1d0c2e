// Package tracing wraps the OpenTelemetry tracer used to trace request
// dispatch.
//
// The tracer comes from the global OpenTelemetry provider unless one is
// passed explicitly. Configure the provider in main() before starting the
// server:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTracerName is the instrumentation name used when none is configured.
const DefaultTracerName = "duplex"

// SpanRequest is the name of the span covering one dispatched request.
const SpanRequest = "http.request"

// Config configures a Tracer.
type Config struct {
	// TracerName is the instrumentation name (default: "duplex").
	TracerName string

	// Provider overrides the global tracer provider.
	Provider trace.TracerProvider
}

// Option configures a Tracer.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithProvider sets the tracer provider.
func WithProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.Provider = tp
	}
}

// Tracer starts request spans.
type Tracer struct {
	tracer trace.Tracer
}

// New resolves a tracer from the configured provider.
func New(opts ...Option) *Tracer {
	cfg := Config{TracerName: DefaultTracerName}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Provider == nil {
		return &Tracer{tracer: otel.Tracer(cfg.TracerName)}
	}
	return &Tracer{tracer: cfg.Provider.Tracer(cfg.TracerName)}
}

// StartRequest starts a server span for a parsed request. A nil Tracer uses
// the global provider.
func (t *Tracer) StartRequest(ctx context.Context, method, uri string) (context.Context, trace.Span) {
	tr := otel.Tracer(DefaultTracerName)
	if t != nil {
		tr = t.tracer
	}
	return tr.Start(ctx, SpanRequest,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.target", uri),
		),
	)
}

// EndRequest records the reply status and ends span. Statuses of 400 and
// above mark the span as failed.
func EndRequest(span trace.Span, status int, err error) {
	span.SetAttributes(attribute.Int("http.status_code", status))
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status >= 400:
		span.SetStatus(codes.Error, "")
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
