package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/barguni/barguni-api/internal/config"
	"github.com/barguni/barguni-api/internal/telemetry"
)

func TestInitTracerWithoutCollectorIsNoop(t *testing.T) {
	cleanup, err := telemetry.InitTracer(context.Background(), config.Otel{ServiceName: "barguni-api"})
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	assert.NoError(t, cleanup(context.Background()))
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}
