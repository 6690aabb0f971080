// Package outbox carries trace context and correlation ids from the request
// that wrote an outbox message to whoever consumes it from Kafka.
package outbox

import (
	"context"
	"maps"
	"slices"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/barguni/barguni-api/pkg/correlationid"
)

// BuildHeaders captures the propagation state of ctx as message headers.
func BuildHeaders(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	if id, ok := correlationid.FromContext(ctx); ok {
		carrier.Set(correlationid.Header, id)
	}
	return carrier
}

// ExtractContextFromHeaders restores what BuildHeaders captured onto ctx.
func ExtractContextFromHeaders(ctx context.Context, headers map[string]string) context.Context {
	carrier := propagation.MapCarrier(headers)
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	if id := carrier.Get(correlationid.Header); id != "" {
		ctx = correlationid.NewContext(ctx, id)
	}
	return ctx
}

// ExtractContextFromRecord is ExtractContextFromHeaders for a consumed record.
func ExtractContextFromRecord(ctx context.Context, rec *kgo.Record) context.Context {
	return ExtractContextFromHeaders(ctx, HeadersFromRecord(rec))
}

// RecordHeaders converts headers to Kafka record headers ordered by key.
func RecordHeaders(headers map[string]string) []kgo.RecordHeader {
	out := make([]kgo.RecordHeader, 0, len(headers))
	for _, k := range slices.Sorted(maps.Keys(headers)) {
		out = append(out, kgo.RecordHeader{Key: k, Value: []byte(headers[k])})
	}
	return out
}

// HeadersFromRecord returns the headers of rec. A repeated key keeps its last
// value.
func HeadersFromRecord(rec *kgo.Record) map[string]string {
	headers := make(map[string]string, len(rec.Headers))
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	return headers
}
