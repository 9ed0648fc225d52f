package observability_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/technotrac/authcore/internal/observability"
)

func TestInitTelemetry_NoEndpoint(t *testing.T) {
	tel, err := observability.InitTelemetry(context.Background(), observability.TelemetryConfig{
		ServiceName:    "test-service",
		ServiceVersion: "0.0.1",
		Environment:    "test",
	})

	require.NoError(t, err)
	require.NotNil(t, tel)

	counter, err := observability.Meter("test").Int64Counter("test_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestTelemetry_ShutdownZeroValue(t *testing.T) {
	tel := &observability.Telemetry{}

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestTraceIDFromContext_NoActiveSpan(t *testing.T) {
	assert.Empty(t, observability.TraceIDFromContext(context.Background()))
}

func TestTraceIDFromContext_WithActiveSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "test-span")
	defer span.End()

	traceID := observability.TraceIDFromContext(ctx)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), traceID)
	assert.NotNil(t, observability.LoggerFromContext(ctx))
}

func TestSentry_DisabledWithoutDSN(t *testing.T) {
	require.NoError(t, observability.InitSentry(observability.SentryConfig{}))

	assert.NotPanics(t, func() {
		observability.CaptureError(context.Background(), errors.New("boom"))
		observability.CaptureError(context.Background(), nil)
	})
}
