package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stitchhq/stitch/queue"
)

// tracerName is the instrumentation scope name for stitch tracing.
const tracerName = "github.com/stitchhq/stitch"

// Tracing returns middleware that wraps item processing in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer. This variant allows injecting a specific TracerProvider for
// testing or when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, item *queue.Item, next Handler) error {
		ctx, span := tracer.Start(ctx, "stitch.tailor.process",
			trace.WithAttributes(
				attribute.String("stitch.item.id", item.ID.String()),
				attribute.String("stitch.item.kind", string(item.Kind)),
				attribute.String("stitch.job.id", item.JobID.String()),
				attribute.Int("stitch.item.attempt", item.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
