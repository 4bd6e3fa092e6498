package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	before := otel.GetTracerProvider()

	tp, shutdown, err := Setup(context.Background(), "", "test")
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NotPanics(t, func() {
		_, span := tp.Tracer("x").Start(context.Background(), "noop")
		span.End()
	})
	assert.Equal(t, before, otel.GetTracerProvider(), "global provider untouched")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, shutdown(ctx))
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	// Non-routable, so nothing is actually exported.
	tp, shutdown, err := Setup(context.Background(), "http://192.0.2.1:4318", "test")
	require.NoError(t, err)

	_, ok := tp.(*sdktrace.TracerProvider)
	assert.True(t, ok)
	assert.Equal(t, tp, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}
