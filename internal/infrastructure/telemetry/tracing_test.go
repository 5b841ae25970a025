package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/gateway/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	tenant := uuid.New()
	_, span := telemetry.StartSpan(context.Background(), "erp.fetch_domain",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenant),
		telemetry.WithAttribute(telemetry.SpanAttrDomain, "patients"),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	telemetry.SetAttribute(span, telemetry.SpanAttrCacheHit, true)
	telemetry.SetAttribute(span, telemetry.SpanAttrRows, 12)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "erp.fetch_domain", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, tenant.String(), attrs[telemetry.SpanAttrTenantID])
	assert.Equal(t, "patients", attrs[telemetry.SpanAttrDomain])
	assert.Equal(t, "true", attrs[telemetry.SpanAttrCacheHit])
	assert.Equal(t, "12", attrs[telemetry.SpanAttrRows])
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, parent := telemetry.StartServiceSpan(context.Background(), "dashboard", "general_indicators")
	_, child := telemetry.StartSpan(ctx, "erp.query")
	child.End()
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "erp.query", spans[0].Name())
	assert.Equal(t, "dashboard.general_indicators", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "failing")
	telemetry.RecordError(span, errors.New("connection refused"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "connection refused", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
}

func TestRecordError_NilSafe(t *testing.T) {
	sr := setupTestTracer(t)

	telemetry.RecordError(nil, errors.New("ignored"))
	telemetry.SetAttribute(nil, "k", "v")

	_, span := telemetry.StartSpan(context.Background(), "ok")
	telemetry.RecordError(span, nil)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}
