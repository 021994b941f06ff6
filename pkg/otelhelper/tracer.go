// Package otelhelper provides distributed tracing for approval workflow operations.
package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Common attribute keys.
	DefinitionIDKey = "approvals.definition.id"
	InstanceIDKey   = "approvals.instance.id"
	ApprovalIDKey   = "approvals.approval.id"
	StepOrderKey    = "approvals.step.order"
	EntityTypeKey   = "approvals.entity.type"
	EntityIDKey     = "approvals.entity.id"
	TriggerTypeKey  = "approvals.trigger.type"
	EventIDKey      = "approvals.event.id"
	ActorKey        = "approvals.actor"
	DecisionKey     = "approvals.decision"
	StatusKey       = "approvals.status"
	TriggerFiredKey = "approvals.trigger.fired"
	CategoryKey     = "approvals.error.category"
)

// TracerName is used by components that trace through the global provider.
const TracerName = "github.com/Stefan/orka-ppm-sub007"

// Tracer returns the tracer of the global provider. It is a no-op tracer until Setup runs.
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Setup installs an OTLP/HTTP tracer provider as the global provider. The returned function
// flushes and stops it.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	provider, err := newTracerProvider(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	return provider.Shutdown, nil
}

// nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func newTracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp, nil
}
