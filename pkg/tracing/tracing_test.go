package tracing

import (
	"context"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func TestInitTracingWithoutEndpoint(t *testing.T) {
	t.Setenv("OTLP_ENDPOINT", "")

	shutdown, err := InitTracing(context.Background(), "test")
	if err != nil {
		t.Fatalf("InitTracing() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("InitTracing() returned a nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown error = %v", err)
	}

	// The noop tracer must still hand out usable spans
	ctx, span := StartSpan(context.Background(), "test.span")
	defer span.End()

	RecordError(ctx, fmt.Errorf("test error"))
	SetStatus(ctx, codes.Error, "test")
	AddEvent(ctx, "test_event")
	SetAttributes(ctx, attribute.String("key", "value"))
}

func TestServiceAttributes(t *testing.T) {
	attrs := ServiceAttributes(ServiceOverpass, "fetch_elements", "https://example.org", 200)
	if len(attrs) != 4 {
		t.Fatalf("expected 4 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != AttrServiceName || attrs[0].Value.AsString() != "overpass" {
		t.Errorf("first attribute = %v", attrs[0])
	}
}

func TestErrorAttributes(t *testing.T) {
	if got := ErrorAttributes(nil); got != nil {
		t.Errorf("ErrorAttributes(nil) = %v", got)
	}

	attrs := ErrorAttributes(fmt.Errorf("boom"))
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[1].Value.AsString() != "boom" {
		t.Errorf("error message attribute = %v", attrs[1])
	}
}
