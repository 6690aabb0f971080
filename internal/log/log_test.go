package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/barguni/barguni-api/internal/config"
	"github.com/barguni/barguni-api/pkg/correlationid"
)

func TestEnrichedHandlerAddsCorrelationAndTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.Log{Format: config.LogFormatJSON, Level: slog.LevelInfo}, &buf))

	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	ctx := correlationid.NewContext(context.Background(), "corr-1")
	ctx = trace.ContextWithSpanContext(ctx, spanCtx)

	logger.InfoContext(ctx, "resolved", slog.String("barcode", "8801234567890"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "corr-1", entry["correlation_id"])
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", entry["trace_id"])
	assert.Equal(t, "b7ad6b7169203331", entry["span_id"])
	assert.Equal(t, "8801234567890", entry["barcode"])
}

func TestEnrichedHandlerWithoutContextValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.Log{Format: config.LogFormatJSON, Level: slog.LevelInfo}, &buf))

	logger.With("component", "test").InfoContext(context.Background(), "plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "correlation_id")
	assert.NotContains(t, entry, "trace_id")
	assert.Equal(t, "test", entry["component"])
}
