package kafkabus

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/bus"
)

// fakeWriter captures written messages and can answer them like the billing
// side would.
type fakeWriter struct {
	messages []kafka.Message
	onWrite  func(msg kafka.Message)
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	if w.onWrite != nil {
		for _, m := range msgs {
			w.onWrite(m)
		}
	}
	return nil
}

func newTestRequester(writer messageWriter, timeout time.Duration) *Requester {
	return &Requester{
		writer:       writer,
		requestTopic: "billing.requests",
		replyTopic:   "orders.payment-replies",
		timeout:      timeout,
		logger:       zap.NewNop(),
		pending:      make(map[string]chan *bus.PaymentReply),
	}
}

func replyMessage(correlationID string, reply *bus.PaymentReply) kafka.Message {
	body, _ := json.Marshal(reply)
	return kafka.Message{
		Topic: "orders.payment-replies",
		Value: body,
		Headers: []kafka.Header{
			{Key: bus.HeaderCorrelationID, Value: []byte(correlationID)},
		},
	}
}

func TestAuthorize_ReplyMatchedByCorrelationID(t *testing.T) {
	writer := &fakeWriter{}
	r := newTestRequester(writer, time.Second)

	writer.onWrite = func(msg kafka.Message) {
		correlationID := headerValue(msg, bus.HeaderCorrelationID)
		require.NotEmpty(t, correlationID)
		assert.Equal(t, string(bus.RequestTypeAuthorize), headerValue(msg, bus.HeaderRequestType))
		assert.Equal(t, "orders.payment-replies", headerValue(msg, bus.HeaderReplyTo))

		go func() {
			err := r.handleReplyMessage(context.Background(), replyMessage(correlationID, &bus.PaymentReply{
				Valid:         true,
				TransactionID: "tx-1",
				PaymentID:     "pay-1",
			}))
			assert.NoError(t, err)
		}()
	}

	reply, err := r.Authorize(context.Background(), &bus.AuthorizePaymentRequest{
		OrderID: "order-1",
		Amount:  90,
	})

	require.NoError(t, err)
	assert.True(t, reply.Valid)
	assert.Equal(t, "tx-1", reply.TransactionID)
	assert.Equal(t, "pay-1", reply.PaymentID)
	require.Len(t, writer.messages, 1)
	assert.Equal(t, "billing.requests", writer.messages[0].Topic)
	assert.Equal(t, []byte("order-1"), writer.messages[0].Key)
}

func TestAuthorize_TimeoutIsNotSuccess(t *testing.T) {
	writer := &fakeWriter{}
	r := newTestRequester(writer, 20*time.Millisecond)

	reply, err := r.Authorize(context.Background(), &bus.AuthorizePaymentRequest{OrderID: "order-2"})

	assert.Nil(t, reply)
	assert.ErrorIs(t, err, bus.ErrRequestTimeout)

	// Pending entry is cleaned up, so the late reply is dropped silently.
	r.mu.Lock()
	assert.Empty(t, r.pending)
	r.mu.Unlock()
}

func TestCancel_WriteFailurePropagates(t *testing.T) {
	writer := &fakeWriter{err: assert.AnError}
	r := newTestRequester(writer, time.Second)

	reply, err := r.Cancel(context.Background(), "order-3")

	assert.Nil(t, reply)
	assert.ErrorContains(t, err, "failed to send payment.cancel request")
}

func TestHandleReplyMessage_NoCorrelationIDDropped(t *testing.T) {
	r := newTestRequester(&fakeWriter{}, time.Second)

	err := r.handleReplyMessage(context.Background(), kafka.Message{Value: []byte(`{"valid":true}`)})

	assert.NoError(t, err)
}

func TestHandleReplyMessage_MalformedReplyDoesNotBlockConsumer(t *testing.T) {
	r := newTestRequester(&fakeWriter{}, time.Second)
	ch := r.register("corr-1")
	defer r.unregister("corr-1")

	err := r.handleReplyMessage(context.Background(), kafka.Message{
		Value:   []byte(`not json`),
		Headers: []kafka.Header{{Key: bus.HeaderCorrelationID, Value: []byte("corr-1")}},
	})

	assert.NoError(t, err)
	assert.Empty(t, ch)
}

func TestReplyGroupID_UniquePerInstance(t *testing.T) {
	a := replyGroupID("orders-payment-replies")
	b := replyGroupID("orders-payment-replies")

	assert.True(t, strings.HasPrefix(a, "orders-payment-replies-"))
	assert.NotEqual(t, a, b, "replicas sharing a reply group would split the reply partitions between them")
}
