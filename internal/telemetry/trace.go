package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartRequestSpan starts a client span for one API call.
func StartRequestSpan(ctx context.Context, method, route string) (context.Context, trace.Span) {
	tracer := TracerProvider().Tracer("nauru/gateway")
	return tracer.Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", route),
		),
	)
}

// StartCommandSpan starts a span for a CLI command.
func StartCommandSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	tracer := TracerProvider().Tracer("nauru/commands")
	return tracer.Start(ctx, "command."+name,
		trace.WithAttributes(attribute.String("command", name)),
	)
}

// RecordStatus sets the response status on span.
func RecordStatus(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status >= 400 {
		span.SetStatus(codes.Error, "")
	}
}

// RecordError marks span failed with err.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
