package outbox_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/barguni/barguni-api/pkg/correlationid"
	"github.com/barguni/barguni-api/pkg/outbox"
)

func TestHeadersCarryCorrelationID(t *testing.T) {
	ctx := correlationid.NewContext(context.Background(), "corr-1")

	headers := outbox.BuildHeaders(ctx)
	assert.Equal(t, "corr-1", headers[correlationid.Header])

	rec := &kgo.Record{Headers: outbox.RecordHeaders(headers)}

	got, ok := correlationid.FromContext(outbox.ExtractContextFromRecord(context.Background(), rec))
	assert.True(t, ok)
	assert.Equal(t, "corr-1", got)
}

func TestBuildHeadersWithoutCorrelationID(t *testing.T) {
	headers := outbox.BuildHeaders(context.Background())
	_, ok := headers[correlationid.Header]
	assert.False(t, ok)
}

func TestRecordHeadersAreOrderedByKey(t *testing.T) {
	got := outbox.RecordHeaders(map[string]string{"b": "2", "a": "1", "c": "3"})

	assert.Equal(t, []kgo.RecordHeader{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
		{Key: "c", Value: []byte("3")},
	}, got)
}

func TestHeadersFromRecordKeepsLastValue(t *testing.T) {
	rec := &kgo.Record{Headers: []kgo.RecordHeader{
		{Key: "k", Value: []byte("old")},
		{Key: "k", Value: []byte("new")},
	}}

	assert.Equal(t, map[string]string{"k": "new"}, outbox.HeadersFromRecord(rec))
}
