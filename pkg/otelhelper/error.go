package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span failed. attrs are attached to the recorded error event.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// SetCategorizedError marks the span failed and tags it with the recovery category.
func SetCategorizedError(span trace.Span, err error, category string) {
	span.SetAttributes(attribute.String(CategoryKey, category))
	SetError(span, err, attribute.String(CategoryKey, category))
}
