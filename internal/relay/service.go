package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/barguni/barguni-api/internal/config"
	"github.com/barguni/barguni-api/internal/repository"
	"github.com/barguni/barguni-api/internal/storage/db"
	"github.com/barguni/barguni-api/internal/storage/mq"
	"github.com/barguni/barguni-api/pkg/outbox"
	"github.com/barguni/barguni-api/pkg/ptr"
)

// Service publishes pending outbox messages to the message broker.
type Service struct {
	cfg           config.Relay
	logger        *slog.Logger
	db            db.DB
	outboxMsgRepo repository.OutboxMsgRepository
	mqProducer    mq.Producer

	stopChan chan struct{}
}

func NewService(
	cfg config.Relay,
	logger *slog.Logger,
	db db.DB,
	outboxMsgRepo repository.OutboxMsgRepository,
	mqProducer mq.Producer,
) *Service {
	return &Service{
		cfg:           cfg,
		logger:        logger.With(slog.String("service", "relay")),
		db:            db,
		outboxMsgRepo: outboxMsgRepo,
		mqProducer:    mqProducer,
		stopChan:      make(chan struct{}),
	}
}

type CleanupFunc func()

// Run relays on every interval tick until the returned cleanup is called. The
// cleanup waits for an in-flight batch up to the configured shutdown timeout.
func (s *Service) Run(ctx context.Context) CleanupFunc {
	ctx, cancel := context.WithCancel(ctx)

	stoppedChan := make(chan struct{})
	go func() {
		defer close(stoppedChan)
		s.run(ctx)
	}()

	return func() {
		close(s.stopChan)
		select {
		case <-stoppedChan:
		case <-time.After(s.cfg.ShutdownTimeout):
			cancel()
			<-stoppedChan
		}
		cancel()
	}
}

func (s *Service) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.RelayBatch(ctx); err != nil {
				s.logger.ErrorContext(ctx, "error relaying outbox msgs", slog.Any("error", err))
			}
		}
	}
}

// RelayBatch publishes one batch of pending messages and records each
// outcome. It returns the number of messages handled.
func (s *Service) RelayBatch(ctx context.Context) (int, error) {
	var relayed int
	err := s.db.WithTx(ctx, func(tx db.DB) error {
		batchSize := int32(s.cfg.BatchSize) //nolint:gosec
		msgs, err := s.outboxMsgRepo.WithDB(tx).ListUnprocessedOutboxMsgs(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("list unprocessed outbox msgs: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}

		s.logger.InfoContext(ctx, "relaying outbox msgs", slog.Int("count", len(msgs)))

		results := make([]repository.OutboxMsgResult, len(msgs))
		var wg sync.WaitGroup
		for i, msg := range msgs {
			wg.Go(func() {
				results[i] = s.publish(ctx, msg)
			})
		}
		wg.Wait()

		if err := s.outboxMsgRepo.WithDB(tx).MarkOutboxMsgsProcessed(ctx, results); err != nil {
			return fmt.Errorf("mark outbox msgs processed: %w", err)
		}

		relayed = len(msgs)
		return nil
	})

	return relayed, err
}

func (s *Service) publish(ctx context.Context, msg repository.OutboxMsg) repository.OutboxMsgResult {
	msgCtx := outbox.ExtractContextFromHeaders(ctx, msg.Headers)

	err := s.mqProducer.Produce(msgCtx, mq.ProduceMsg{
		Topic:        msg.Topic,
		Headers:      msg.Headers,
		Payload:      msg.Payload,
		PartitionKey: msg.PartitionKey,
	})
	if err != nil {
		s.logger.ErrorContext(msgCtx, "error producing message",
			slog.String("outbox_msg_id", msg.ID.String()),
			slog.String("topic", msg.Topic),
			slog.Any("error", err),
		)
		return repository.OutboxMsgResult{ID: msg.ID, Error: ptr.New(err.Error())}
	}

	return repository.OutboxMsgResult{ID: msg.ID}
}
