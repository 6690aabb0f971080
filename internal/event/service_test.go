package event

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barguni/barguni-api/internal/storage/mq"
)

type fakeConsumer struct {
	handlers map[string]mq.HandlerFunc
	running  bool
}

func (c *fakeConsumer) RegisterHandler(topic string, handler mq.HandlerFunc) error {
	if c.handlers == nil {
		c.handlers = map[string]mq.HandlerFunc{}
	}
	c.handlers[topic] = handler
	return nil
}

func (c *fakeConsumer) Run(context.Context) (mq.CleanupFunc, error) {
	c.running = true
	return func() { c.running = false }, nil
}

func TestServiceHandlesProductResolved(t *testing.T) {
	var buf bytes.Buffer
	consumer := &fakeConsumer{}
	svc := New(slog.New(slog.NewJSONHandler(&buf, nil)), consumer)

	cleanup, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, consumer.running)

	handler, ok := consumer.handlers[TopicProductResolved]
	require.True(t, ok)

	payload, err := json.Marshal(ProductResolvedEvent{
		ProductID:  uuid.New(),
		Barcode:    "8801234567890",
		Name:       "생수 500ml",
		PictureID:  uuid.New(),
		PictureURL: "/api/v1/pictures/x/content",
		ResolvedAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), TopicProductResolved, payload))
	assert.Contains(t, buf.String(), "8801234567890")

	require.Error(t, handler(context.Background(), TopicProductResolved, []byte("{")))

	cleanup()
	assert.False(t, consumer.running)
}
