package observability

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitOTel_Disabled(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)

	require.NoError(t, err)
	assert.Nil(t, providers, "disabled config must not build providers")
}

// The OTLP gRPC exporters connect lazily, so provider construction
// succeeds even when nothing listens on the endpoint.
func TestInitOTel_LazyConnection(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	cfg := OTelConfig{
		Enabled:        true,
		Endpoint:       "127.0.0.1:1", // nothing listens here
		ServiceName:    "envlink-test",
		ServiceVersion: "0.0.0",
		Insecure:       true,
	}

	providers, err := InitOTel(context.Background(), cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)
	require.NotNil(t, providers.TracerProvider)
	require.NotNil(t, providers.MeterProvider)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = ShutdownOTel(ctx, providers, logger)
	})

	assert.Same(t, providers.TracerProvider, otel.GetTracerProvider(),
		"init must install the global tracer provider")

	// Spans can be started and ended without a collector.
	_, span := providers.TracerProvider.Tracer("test").Start(context.Background(), "resolve")
	span.End()
}

func TestShutdownOTel_NilProviders(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	assert.NoError(t, ShutdownOTel(context.Background(), nil, logger))
}
