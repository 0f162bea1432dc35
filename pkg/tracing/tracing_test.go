package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/opentracing/opentracing-go"
)

func TestInitTracerDisabled(t *testing.T) {
	tracer, closeFn, err := InitTracer(Config{})
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	defer closeFn()
	if _, ok := tracer.(opentracing.NoopTracer); !ok {
		t.Errorf("expected noop tracer, got %T", tracer)
	}

	span, ctx := StartSpan(context.Background(), "test")
	if opentracing.SpanFromContext(ctx) == nil {
		t.Error("span not attached to context")
	}
	if f := Fields(span); f != nil {
		t.Errorf("noop span must give no fields, got %v", f)
	}
	Finish(span, errors.New("boom"))
}
