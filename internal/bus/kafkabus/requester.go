package kafkabus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/bus"
	infra "github.com/henriquesd/dev-store/internal/infrastructure/kafka"
	"github.com/henriquesd/dev-store/internal/util"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Requester implements bus.PaymentClient over a Kafka request topic and a
// service-private reply topic. Replies are matched to in-flight requests by
// correlation id.
type Requester struct {
	writer       messageWriter
	requestTopic string
	replyTopic   string
	timeout      time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	pending map[string]chan *bus.PaymentReply
}

func NewRequester(brokers []string, requestTopic, replyTopic string, timeout time.Duration, l *zap.Logger) *Requester {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
		Logger:   zap.NewStdLog(l.With(zap.String("kafka_component", "bus_requester"))),
	}
	return &Requester{
		writer:       writer,
		requestTopic: requestTopic,
		replyTopic:   replyTopic,
		timeout:      timeout,
		logger:       l,
		pending:      make(map[string]chan *bus.PaymentReply),
	}
}

// Start runs the reply consumer until ctx is cancelled. Each requester
// instance derives its own consumer group from groupPrefix so every instance
// sees every reply and drops the ones it has no waiter for.
func (r *Requester) Start(ctx context.Context, brokers []string, groupPrefix string) {
	consumer := infra.NewConsumer(brokers, r.replyTopic, replyGroupID(groupPrefix), r.handleReplyMessage, r.logger)
	go func() {
		defer consumer.Close()
		if err := consumer.Consume(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("Reply consumer stopped unexpectedly", zap.Error(err))
		}
	}()
}

// replyGroupID makes the reply group unique per instance. A fixed group
// shared by replicas would split the reply topic's partitions between them,
// leaving replies on instances that hold no waiter for the correlation id.
func replyGroupID(prefix string) string {
	return prefix + "-" + util.GenerateUUID()
}

func (r *Requester) Authorize(ctx context.Context, req *bus.AuthorizePaymentRequest) (*bus.PaymentReply, error) {
	return r.request(ctx, bus.RequestTypeAuthorize, req.OrderID, req)
}

func (r *Requester) Cancel(ctx context.Context, orderID string) (*bus.PaymentReply, error) {
	return r.request(ctx, bus.RequestTypeCancel, orderID, &bus.CancelPaymentRequest{OrderID: orderID})
}

func (r *Requester) request(ctx context.Context, reqType bus.RequestType, key string, payload any) (*bus.PaymentReply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", reqType, err)
	}

	correlationID := util.GenerateUUID()
	ch := r.register(correlationID)
	defer r.unregister(correlationID)

	msg := kafka.Message{
		Topic: r.requestTopic,
		Key:   []byte(key),
		Value: body,
		Headers: []kafka.Header{
			{Key: bus.HeaderCorrelationID, Value: []byte(correlationID)},
			{Key: bus.HeaderRequestType, Value: []byte(reqType)},
			{Key: bus.HeaderReplyTo, Value: []byte(r.replyTopic)},
		},
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", reqType, err)
	}
	r.logger.Debug("Bus request sent",
		zap.String("request_type", string(reqType)),
		zap.String("correlation_id", correlationID),
		zap.String("key", key))

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		r.logger.Warn("No reply within timeout",
			zap.String("request_type", string(reqType)),
			zap.String("correlation_id", correlationID),
			zap.Duration("timeout", r.timeout))
		return nil, bus.ErrRequestTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Requester) register(correlationID string) chan *bus.PaymentReply {
	ch := make(chan *bus.PaymentReply, 1)
	r.mu.Lock()
	r.pending[correlationID] = ch
	r.mu.Unlock()
	return ch
}

func (r *Requester) unregister(correlationID string) {
	r.mu.Lock()
	delete(r.pending, correlationID)
	r.mu.Unlock()
}

func (r *Requester) handleReplyMessage(_ context.Context, msg kafka.Message) error {
	correlationID := headerValue(msg, bus.HeaderCorrelationID)
	if correlationID == "" {
		r.logger.Warn("Reply without correlation id dropped", zap.String("topic", msg.Topic))
		return nil
	}

	var reply bus.PaymentReply
	if err := json.Unmarshal(msg.Value, &reply); err != nil {
		r.logger.Error("Failed to unmarshal payment reply",
			zap.String("correlation_id", correlationID), zap.Error(err))
		return nil
	}

	r.deliver(correlationID, &reply)
	return nil
}

func (r *Requester) deliver(correlationID string, reply *bus.PaymentReply) {
	r.mu.Lock()
	ch, ok := r.pending[correlationID]
	r.mu.Unlock()
	if !ok {
		// Late reply after timeout, or a reply addressed to another instance.
		r.logger.Debug("Reply with no waiter dropped", zap.String("correlation_id", correlationID))
		return
	}
	select {
	case ch <- reply:
	default:
		r.logger.Warn("Duplicate reply dropped", zap.String("correlation_id", correlationID))
	}
}

func (r *Requester) Close() error {
	if closer, ok := r.writer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
