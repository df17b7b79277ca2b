package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/bus"
	"github.com/henriquesd/dev-store/internal/metrics"
	"github.com/henriquesd/dev-store/internal/order/cache"
	"github.com/henriquesd/dev-store/internal/order/domain"
	"github.com/henriquesd/dev-store/internal/order/repository/order_repo"
	"github.com/henriquesd/dev-store/internal/order/repository/voucher_repo"
	"github.com/henriquesd/dev-store/internal/outbox"
	"github.com/henriquesd/dev-store/internal/util"
	"github.com/henriquesd/dev-store/internal/validation"
)

type CheckoutService interface {
	Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error)
	GetOrder(ctx context.Context, orderID string) (*OrderResponse, error)
	GetOrdersByClient(ctx context.Context, clientID string) ([]*OrderResponse, error)
	GetVoucher(ctx context.Context, code string) (*VoucherResponse, error)
}

type checkoutService struct {
	orders       order_repo.OrderRepository
	vouchers     voucher_repo.VoucherRepository
	voucherCache cache.VoucherCache
	payments     bus.PaymentClient
	eventsTopic  string
	metrics      *metrics.CheckoutMetrics
	logger       *zap.Logger
}

func NewCheckoutService(
	orders order_repo.OrderRepository,
	vouchers voucher_repo.VoucherRepository,
	voucherCache cache.VoucherCache,
	payments bus.PaymentClient,
	eventsTopic string,
	m *metrics.CheckoutMetrics,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		orders:       orders,
		vouchers:     vouchers,
		voucherCache: voucherCache,
		payments:     payments,
		eventsTopic:  eventsTopic,
		metrics:      m,
		logger:       logger,
	}
}

// Checkout runs the order workflow: validate the request, apply the voucher,
// recompute totals, authorize payment over the bus and persist everything as
// one unit. Each step short-circuits; nothing is persisted until the final
// step, and a persisted failure after a successful authorization triggers
// exactly one compensating cancel.
func (s *checkoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	if result := validateRequest(req); !result.Valid() {
		s.metrics.Checkouts.WithLabelValues("rejected").Inc()
		return &CheckoutResponse{Failures: result.Failures}, nil
	}

	items := make([]domain.OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}
	order, err := domain.NewOrder(util.GenerateUUID(), req.ClientID, items)
	if err != nil {
		return nil, fmt.Errorf("failed to build order: %w", err)
	}
	order.SetAddress(domain.Address{
		Street:       req.Address.Street,
		Number:       req.Address.Number,
		Complement:   req.Address.Complement,
		Neighborhood: req.Address.Neighborhood,
		ZipCode:      req.Address.ZipCode,
		City:         req.Address.City,
		State:        req.Address.State,
	})

	if req.HasVoucher {
		if result := s.applyVoucher(ctx, req.VoucherCode, order); !result.Valid() {
			s.metrics.Checkouts.WithLabelValues("rejected").Inc()
			return &CheckoutResponse{Failures: result.Failures}, nil
		}
	}

	if result := s.validateTotals(order, req); !result.Valid() {
		s.metrics.Checkouts.WithLabelValues("rejected").Inc()
		return &CheckoutResponse{Failures: result.Failures}, nil
	}

	if err := order.MarkPendingPayment(); err != nil {
		return nil, fmt.Errorf("failed to mark order pending payment: %w", err)
	}

	reply, result := s.authorizePayment(ctx, order, req)
	if !result.Valid() {
		s.metrics.Checkouts.WithLabelValues("payment_denied").Inc()
		return &CheckoutResponse{Failures: result.Failures}, nil
	}

	if result := s.finalize(ctx, order, reply); !result.Valid() {
		s.metrics.Checkouts.WithLabelValues("persistence_failed").Inc()
		return &CheckoutResponse{Failures: result.Failures}, nil
	}

	s.metrics.Checkouts.WithLabelValues("authorized").Inc()
	s.logger.Info("Checkout completed",
		zap.String("order_id", order.ID),
		zap.String("client_id", order.ClientID),
		zap.Float64("amount", order.Amount),
		zap.Float64("discount", order.Discount))

	return &CheckoutResponse{
		OrderID:  order.ID,
		Status:   string(order.Status),
		Amount:   order.Amount,
		Discount: order.Discount,
	}, nil
}

func validateRequest(req *CheckoutRequest) *validation.Result {
	result := &validation.Result{}
	if req.ClientID == "" {
		result.Add("client_id", "Client id is required")
	}
	if len(req.Items) == 0 {
		result.Add("items", "The order has no items")
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			result.Add("items", "Order item without a product")
		}
		if item.Quantity <= 0 {
			result.Add("items", "Order item quantity must be positive")
		}
		if item.UnitPrice <= 0 {
			result.Add("items", "Order item unit price must be positive")
		}
	}
	if req.Amount <= 0 {
		result.Add("amount", "Order amount must be positive")
	}
	if req.Holder == "" || req.CardNumber == "" || req.Expiration == "" || req.SecurityCode == "" {
		result.Add("payment", "Payment card details are incomplete")
	}
	return result
}

// applyVoucher looks the code up (cache first) and runs the voucher rules.
// A voucher failing any rule is never associated with the order, so the
// totals check downstream runs against a zero discount.
func (s *checkoutService) applyVoucher(ctx context.Context, code string, order *domain.Order) *validation.Result {
	result := &validation.Result{}

	voucher, err := s.lookupVoucher(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrVoucherNotFound) {
			result.Add("voucher", "Voucher not found")
			return result
		}
		s.logger.Error("Failed to look up voucher", zap.String("code", code), zap.Error(err))
		result.Add("voucher", "Voucher could not be verified")
		return result
	}

	if voucherResult := voucher.Validate(order.ItemsTotal()); !voucherResult.Valid() {
		result.Merge(voucherResult)
		return result
	}

	order.ApplyVoucher(voucher)
	return result
}

func (s *checkoutService) lookupVoucher(ctx context.Context, code string) (*domain.Voucher, error) {
	if voucher, err := s.voucherCache.Get(ctx, code); err == nil {
		return voucher, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Voucher cache read failed, falling back to database", zap.String("code", code), zap.Error(err))
	}

	voucher, err := s.vouchers.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.voucherCache.Set(ctx, voucher); err != nil {
		s.logger.Warn("Failed to cache voucher", zap.String("code", code), zap.Error(err))
	}
	return voucher, nil
}

// validateTotals recomputes amount and discount server-side and compares
// them with what the client declared.
func (s *checkoutService) validateTotals(order *domain.Order, req *CheckoutRequest) *validation.Result {
	result := &validation.Result{}
	order.CalculateAmount()

	if order.Amount != req.Amount {
		result.Add("amount", "The order total amount is different from the total amount of the individual items")
	}
	if order.Discount != req.Discount {
		result.Add("discount", "The discount sent is different from the order discount")
	}
	return result
}

// authorizePayment suspends on the bus waiting for billing's typed reply.
// A timeout or transport error is a denial; the workflow fails closed.
func (s *checkoutService) authorizePayment(ctx context.Context, order *domain.Order, req *CheckoutRequest) (*bus.PaymentReply, *validation.Result) {
	result := &validation.Result{}

	reply, err := s.payments.Authorize(ctx, &bus.AuthorizePaymentRequest{
		OrderID:      order.ID,
		ClientID:     order.ClientID,
		Amount:       order.Amount,
		Holder:       req.Holder,
		CardNumber:   req.CardNumber,
		Expiration:   req.Expiration,
		SecurityCode: req.SecurityCode,
	})
	if err != nil {
		if errors.Is(err, bus.ErrRequestTimeout) {
			s.logger.Warn("Payment authorization timed out", zap.String("order_id", order.ID))
			result.Add("payment", "Payment authorization timed out, try again later")
			return nil, result
		}
		s.logger.Error("Payment authorization request failed", zap.String("order_id", order.ID), zap.Error(err))
		result.Add("payment", "Payment service is unavailable, try again later")
		return nil, result
	}
	if !reply.Valid {
		for _, msg := range reply.Errors {
			result.Add("payment", msg)
		}
		return nil, result
	}
	return reply, result
}

// finalize commits the order, the voucher decrement and the domain events in
// one transaction. On commit failure the just-made authorization is canceled
// through the same bus path; a failed cancel is the worst outcome this
// system has and is escalated, never swallowed.
func (s *checkoutService) finalize(ctx context.Context, order *domain.Order, reply *bus.PaymentReply) *validation.Result {
	result := &validation.Result{}

	if err := order.Authorize(); err != nil {
		s.logger.Error("Failed to authorize order", zap.String("order_id", order.ID), zap.Error(err))
		result.Add("order", "There was an error completing the order")
		s.compensate(ctx, order.ID, reply.TransactionID)
		return result
	}
	order.AddEvent(domain.OrderAuthorized{
		OrderID:      order.ID,
		ClientID:     order.ClientID,
		Amount:       order.Amount,
		Discount:     order.Discount,
		AuthorizedAt: time.Now().UTC(),
	})

	msgs, err := s.eventMessages(order)
	if err != nil {
		s.logger.Error("Failed to build outbox messages", zap.String("order_id", order.ID), zap.Error(err))
		result.Add("order", "There was an error completing the order")
		s.compensate(ctx, order.ID, reply.TransactionID)
		return result
	}

	if err := s.orders.SaveCheckout(ctx, order, msgs); err != nil {
		s.logger.Error("Failed to persist checkout, compensating payment",
			zap.String("order_id", order.ID),
			zap.String("transaction_id", reply.TransactionID),
			zap.Error(err))
		s.compensate(ctx, order.ID, reply.TransactionID)

		if errors.Is(err, domain.ErrVoucherExhausted) {
			result.Add("voucher", "This voucher has no redemptions left")
		} else {
			result.Add("order", "There was an error persisting the order")
		}
		return result
	}

	order.ClearEvents()
	if order.HasVoucher {
		if err := s.voucherCache.Invalidate(ctx, order.VoucherCode); err != nil {
			s.logger.Warn("Failed to invalidate voucher cache", zap.String("code", order.VoucherCode), zap.Error(err))
		}
	}
	return result
}

// compensate issues exactly one cancel for the authorization that could not
// be recorded. The workflow does not depend on its success, but a failure
// means money is reserved with no order backing it.
func (s *checkoutService) compensate(ctx context.Context, orderID, transactionID string) {
	s.metrics.Compensations.Inc()
	reply, err := s.payments.Cancel(ctx, orderID)
	if err != nil || !reply.Valid {
		s.metrics.CompensationFailures.Inc()
		s.logger.DPanic("Compensating cancel failed, authorized payment may be stranded",
			zap.String("order_id", orderID),
			zap.String("transaction_id", transactionID),
			zap.Strings("reply_errors", replyErrors(reply)),
			zap.Error(err))
		return
	}
	s.logger.Info("Compensating cancel confirmed",
		zap.String("order_id", orderID),
		zap.String("transaction_id", transactionID))
}

func replyErrors(reply *bus.PaymentReply) []string {
	if reply == nil {
		return nil
	}
	return reply.Errors
}

func (s *checkoutService) eventMessages(order *domain.Order) ([]*outbox.Message, error) {
	var msgs []*outbox.Message
	for _, event := range order.Events() {
		payload, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s event: %w", event.EventName(), err)
		}
		msgs = append(msgs, &outbox.Message{
			ID:          util.GenerateUUID(),
			AggregateID: order.ID,
			EventType:   event.EventName(),
			Topic:       s.eventsTopic,
			Key:         order.ID,
			Payload:     payload,
			Status:      outbox.StatusPending,
			CreatedAt:   time.Now().UTC(),
		})
	}
	return msgs, nil
}

func (s *checkoutService) GetOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order_repo.ErrOrderNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to get order", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return mapOrderToResponse(order), nil
}

func (s *checkoutService) GetOrdersByClient(ctx context.Context, clientID string) ([]*OrderResponse, error) {
	orders, err := s.orders.GetByClientID(ctx, clientID)
	if err != nil {
		s.logger.Error("Failed to get orders for client", zap.String("client_id", clientID), zap.Error(err))
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	responses := make([]*OrderResponse, len(orders))
	for i, order := range orders {
		responses[i] = mapOrderToResponse(order)
	}
	return responses, nil
}

func (s *checkoutService) GetVoucher(ctx context.Context, code string) (*VoucherResponse, error) {
	voucher, err := s.lookupVoucher(ctx, code)
	if err != nil {
		return nil, err
	}
	return mapVoucherToResponse(voucher), nil
}
