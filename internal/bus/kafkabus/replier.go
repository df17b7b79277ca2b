package kafkabus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/bus"
	infra "github.com/henriquesd/dev-store/internal/infrastructure/kafka"
)

// Replier writes typed replies back to the topic a request named in its
// reply_to header, echoing the request's correlation id.
type Replier struct {
	producer infra.Producer
	logger   *zap.Logger
}

func NewReplier(producer infra.Producer, l *zap.Logger) *Replier {
	return &Replier{producer: producer, logger: l}
}

func (r *Replier) Reply(ctx context.Context, replyTopic, correlationID string, reply *bus.PaymentReply) error {
	if replyTopic == "" || correlationID == "" {
		return fmt.Errorf("reply requires a reply topic and correlation id")
	}
	body, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal payment reply: %w", err)
	}
	header := kafka.Header{Key: bus.HeaderCorrelationID, Value: []byte(correlationID)}
	if err := r.producer.Produce(ctx, replyTopic, []byte(correlationID), body, header); err != nil {
		return fmt.Errorf("failed to send payment reply: %w", err)
	}
	r.logger.Debug("Bus reply sent",
		zap.String("reply_topic", replyTopic),
		zap.String("correlation_id", correlationID),
		zap.Bool("valid", reply.Valid))
	return nil
}
