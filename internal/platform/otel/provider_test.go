package otel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forecast-tournament/forecast/internal/platform/otel"
)

func TestSetupNoopWhenDisabled(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), otel.Options{Endpoint: "http://localhost:4318", ServiceName: "forecast"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, shutdown(ctx))
}

func TestSetupNoopWithoutEndpoint(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), otel.Options{Enabled: true, ServiceName: "forecast"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupShutdownFlushesCleanly(t *testing.T) {
	// Non-routable address; nothing is exported without spans.
	shutdown, err := otel.Setup(context.Background(), otel.Options{Enabled: true, Endpoint: "http://192.0.2.1:4318", ServiceName: "forecast"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
