package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	infra "github.com/henriquesd/dev-store/internal/infrastructure/kafka"
)

const relayBatchSize = 100

// Relay polls the outbox table and publishes pending messages to Kafka,
// marking each one sent only after the broker accepted it. A message that
// fails to publish stays pending and is retried on the next tick.
type Relay struct {
	repo         Repository
	producer     infra.Producer
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
}

func NewRelay(repo Repository, producer infra.Producer, pollInterval, pollTimeout time.Duration, l *zap.Logger) *Relay {
	return &Relay{
		repo:         repo,
		producer:     producer,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       l,
	}
}

// Start blocks until ctx is cancelled. Run it on its own goroutine.
func (r *Relay) Start(ctx context.Context) {
	r.logger.Info("Outbox relay started", zap.Duration("poll_interval", r.pollInterval))
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopping.")
			return
		case <-ticker.C:
			r.processPending(ctx)
		}
	}
}

func (r *Relay) processPending(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, r.pollTimeout)
	defer cancel()

	messages, err := r.repo.GetPending(pollCtx, relayBatchSize)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}
	r.logger.Debug("Processing pending outbox messages", zap.Int("count", len(messages)))

	for _, msg := range messages {
		if err := r.producer.Produce(pollCtx, msg.Topic, []byte(msg.Key), msg.Payload); err != nil {
			r.logger.Error("Failed to publish outbox message",
				zap.String("message_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Error(err))
			continue
		}
		if err := r.repo.MarkSent(pollCtx, msg.ID); err != nil {
			r.logger.Error("Failed to mark outbox message as sent",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		r.logger.Debug("Outbox message published",
			zap.String("message_id", msg.ID),
			zap.String("event_type", msg.EventType))
	}
}
