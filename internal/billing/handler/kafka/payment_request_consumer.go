package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/billing/app/billing"
	"github.com/henriquesd/dev-store/internal/billing/domain"
	"github.com/henriquesd/dev-store/internal/bus"
	"github.com/henriquesd/dev-store/internal/bus/kafkabus"
	"github.com/henriquesd/dev-store/internal/validation"
)

// PaymentRequestHandler consumes the billing request topic, dispatches on the
// request_type header and replies on the topic the requester named. Every
// request gets a reply: silence on this topic strands the requester until its
// timeout fires.
type PaymentRequestHandler struct {
	service billing.BillingService
	replier *kafkabus.Replier
	logger  *zap.Logger
}

func NewPaymentRequestHandler(s billing.BillingService, replier *kafkabus.Replier, l *zap.Logger) *PaymentRequestHandler {
	return &PaymentRequestHandler{service: s, replier: replier, logger: l}
}

func (h *PaymentRequestHandler) HandleMessage(ctx context.Context, m kafka.Message) error {
	correlationID := headerValue(m, bus.HeaderCorrelationID)
	replyTo := headerValue(m, bus.HeaderReplyTo)
	requestType := headerValue(m, bus.HeaderRequestType)

	if correlationID == "" || replyTo == "" {
		h.logger.Warn("Dropping payment request without reply metadata",
			zap.String("request_type", requestType),
			zap.Int64("offset", m.Offset))
		return nil
	}

	logger := h.logger.With(
		zap.String("request_type", requestType),
		zap.String("correlation_id", correlationID))

	reply, err := h.dispatch(ctx, bus.RequestType(requestType), m.Value, logger)
	if err != nil {
		// No reply on internal failures. The message is redelivered and the
		// requester fails closed on its own timeout; replying a denial here
		// would race the retry's verdict.
		return err
	}

	if err := h.replier.Reply(ctx, replyTo, correlationID, reply); err != nil {
		logger.Error("Failed to send payment reply", zap.Error(err))
		return err
	}
	return nil
}

func (h *PaymentRequestHandler) dispatch(ctx context.Context, requestType bus.RequestType, payload []byte, logger *zap.Logger) (*bus.PaymentReply, error) {
	switch requestType {
	case bus.RequestTypeAuthorize:
		var req bus.AuthorizePaymentRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			logger.Warn("Malformed authorize request", zap.Error(err))
			return denialReply("Malformed payment request"), nil
		}
		res, err := h.service.AuthorizeTransaction(ctx, &billing.AuthorizeRequest{
			OrderID:      req.OrderID,
			ClientID:     req.ClientID,
			Amount:       req.Amount,
			Holder:       req.Holder,
			CardNumber:   req.CardNumber,
			Expiration:   req.Expiration,
			SecurityCode: req.SecurityCode,
		})
		if err != nil {
			logger.Error("Authorize request failed", zap.String("order_id", req.OrderID), zap.Error(err))
			return denialReply("Payment could not be processed"), err
		}
		return toReply(res), nil

	case bus.RequestTypeCapture:
		var req bus.CapturePaymentRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			logger.Warn("Malformed capture request", zap.Error(err))
			return denialReply("Malformed payment request"), nil
		}
		res, err := h.service.CaptureTransaction(ctx, req.OrderID)
		return h.settlementReply(res, err, req.OrderID, logger)

	case bus.RequestTypeCancel:
		var req bus.CancelPaymentRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			logger.Warn("Malformed cancel request", zap.Error(err))
			return denialReply("Malformed payment request"), nil
		}
		res, err := h.service.CancelTransaction(ctx, req.OrderID)
		return h.settlementReply(res, err, req.OrderID, logger)

	default:
		// Deterministic, so deny instead of redelivering forever.
		logger.Error("Unknown payment request type", zap.String("request_type", string(requestType)))
		return denialReply("Unknown payment request type"), nil
	}
}

func (h *PaymentRequestHandler) settlementReply(res *billing.TransactionResponse, err error, orderID string, logger *zap.Logger) (*bus.PaymentReply, error) {
	if err != nil {
		if errors.Is(err, domain.ErrNoOpenAuthorization) || errors.Is(err, domain.ErrAuthorizationConsumed) {
			logger.Error("Consistency fault handling settlement request",
				zap.String("order_id", orderID), zap.Error(err))
			// Do not requeue: redelivery cannot repair a missing
			// authorization, and the requester needs its denial now.
			return denialReply("No payment found for this order"), nil
		}
		logger.Error("Settlement request failed", zap.String("order_id", orderID), zap.Error(err))
		return denialReply("Payment could not be processed"), err
	}
	return toReply(res), nil
}

func toReply(res *billing.TransactionResponse) *bus.PaymentReply {
	return &bus.PaymentReply{
		Valid:         res.Valid(),
		Errors:        failureMessages(res.Failures),
		TransactionID: res.TransactionID,
		PaymentID:     res.PaymentID,
	}
}

func denialReply(message string) *bus.PaymentReply {
	return &bus.PaymentReply{Valid: false, Errors: []string{message}}
}

func failureMessages(failures []validation.Failure) []string {
	if len(failures) == 0 {
		return nil
	}
	messages := make([]string, len(failures))
	for i, f := range failures {
		messages[i] = f.Message
	}
	return messages
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
