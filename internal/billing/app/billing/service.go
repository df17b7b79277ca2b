package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/billing/domain"
	"github.com/henriquesd/dev-store/internal/billing/gateway"
	"github.com/henriquesd/dev-store/internal/billing/repository/transaction_repo"
	"github.com/henriquesd/dev-store/internal/metrics"
	"github.com/henriquesd/dev-store/internal/util"
	"github.com/henriquesd/dev-store/internal/validation"
)

const refusedMessage = "Payment refused, contact your card operator"

type BillingService interface {
	// AuthorizeTransaction reserves the amount on the card. A refusal comes
	// back as failures on the response; an error means the operation could
	// not be carried out at all. The operation is idempotent per order: a
	// redelivered request for an order with an open authorization replays
	// the recorded verdict.
	AuthorizeTransaction(ctx context.Context, req *AuthorizeRequest) (*TransactionResponse, error)

	// CaptureTransaction settles the order's open authorization. It returns
	// domain.ErrNoOpenAuthorization when the ledger holds none; that is a
	// consistency fault, not a refusal.
	CaptureTransaction(ctx context.Context, orderID string) (*TransactionResponse, error)

	// CancelTransaction releases the order's open authorization. Same
	// consistency-fault contract as CaptureTransaction.
	CancelTransaction(ctx context.Context, orderID string) (*TransactionResponse, error)

	GetLedger(ctx context.Context, orderID string) ([]*LedgerEntryResponse, error)
}

type billingService struct {
	transactions transaction_repo.TransactionRepository
	gateway      gateway.Gateway
	metrics      *metrics.BillingMetrics
	logger       *zap.Logger
}

func NewBillingService(
	transactions transaction_repo.TransactionRepository,
	gw gateway.Gateway,
	m *metrics.BillingMetrics,
	logger *zap.Logger,
) BillingService {
	return &billingService{
		transactions: transactions,
		gateway:      gw,
		metrics:      m,
		logger:       logger,
	}
}

func (s *billingService) AuthorizeTransaction(ctx context.Context, req *AuthorizeRequest) (*TransactionResponse, error) {
	// Requests arrive at least once. An order that already holds an open
	// authorization gets the recorded verdict back, never a second gateway
	// reservation and never a denial of a committed success.
	if open, err := s.findOpenAuthorization(ctx, req.OrderID); err != nil {
		s.metrics.Authorizations.WithLabelValues("error").Inc()
		return nil, err
	} else if open != nil {
		s.metrics.Authorizations.WithLabelValues("replayed").Inc()
		s.logger.Info("Replaying recorded authorization",
			zap.String("order_id", req.OrderID),
			zap.String("payment_id", open.PaymentID))
		return &TransactionResponse{
			TransactionID: open.ID,
			PaymentID:     open.PaymentID,
			Status:        string(open.Status),
		}, nil
	}

	result, err := s.gateway.Authorize(ctx, gateway.Card{
		Holder:       req.Holder,
		Number:       req.CardNumber,
		Expiration:   req.Expiration,
		SecurityCode: req.SecurityCode,
	}, req.Amount)
	if err != nil {
		s.metrics.Authorizations.WithLabelValues("error").Inc()
		s.logger.Error("Gateway authorization failed", zap.String("order_id", req.OrderID), zap.Error(err))
		s.recordFailure(ctx, req.OrderID, req.Amount, cardLastFour(req.CardNumber), err.Error())
		return failureResponse(refusedMessage), nil
	}

	if !result.Approved() {
		s.metrics.Authorizations.WithLabelValues("refused").Inc()
		s.logger.Info("Authorization refused by gateway",
			zap.String("order_id", req.OrderID),
			zap.String("reason", result.Reason))
		denied := &domain.Transaction{
			ID:            util.GenerateUUID(),
			OrderID:       req.OrderID,
			PaymentID:     util.GenerateUUID(),
			Status:        domain.TransactionStatusDenied,
			Amount:        req.Amount,
			CardLastFour:  cardLastFour(req.CardNumber),
			FailureReason: result.Reason,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.transactions.Add(ctx, denied); err != nil {
			s.logger.Error("Failed to record denied transaction", zap.String("order_id", req.OrderID), zap.Error(err))
		}
		return failureResponse(refusedMessage), nil
	}

	authorized := &domain.Transaction{
		ID:           util.GenerateUUID(),
		OrderID:      req.OrderID,
		PaymentID:    util.GenerateUUID(),
		GatewayRef:   result.Ref,
		Status:       domain.TransactionStatusAuthorized,
		Amount:       req.Amount,
		CardLastFour: cardLastFour(req.CardNumber),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.transactions.AddAuthorized(ctx, authorized); err != nil {
		s.logger.Error("Failed to record authorization, releasing it at the gateway",
			zap.String("order_id", req.OrderID),
			zap.String("gateway_ref", result.Ref),
			zap.Error(err))
		s.releaseAuthorization(ctx, req.OrderID, result.Ref)

		if errors.Is(err, domain.ErrOpenAuthorizationExists) {
			// Lost the write race to a duplicate of this request. The
			// winner's authorization is the verdict; ours is released.
			open, lookupErr := s.findOpenAuthorization(ctx, req.OrderID)
			if lookupErr == nil && open != nil {
				s.metrics.Authorizations.WithLabelValues("replayed").Inc()
				return &TransactionResponse{
					TransactionID: open.ID,
					PaymentID:     open.PaymentID,
					Status:        string(open.Status),
				}, nil
			}
			// Winner not visible yet (or settled in between); let the
			// redelivery take the replay path.
			s.metrics.Authorizations.WithLabelValues("error").Inc()
			return nil, err
		}
		s.metrics.Authorizations.WithLabelValues("error").Inc()
		return failureResponse(refusedMessage), nil
	}

	s.metrics.Authorizations.WithLabelValues("approved").Inc()
	s.logger.Info("Payment authorized",
		zap.String("order_id", req.OrderID),
		zap.String("transaction_id", authorized.ID),
		zap.String("payment_id", authorized.PaymentID),
		zap.Float64("amount", req.Amount))

	return &TransactionResponse{
		TransactionID: authorized.ID,
		PaymentID:     authorized.PaymentID,
		Status:        string(authorized.Status),
	}, nil
}

func (s *billingService) CaptureTransaction(ctx context.Context, orderID string) (*TransactionResponse, error) {
	open, err := s.openAuthorization(ctx, orderID)
	if err != nil {
		s.metrics.Captures.WithLabelValues("error").Inc()
		return nil, err
	}

	result, err := s.gateway.Capture(ctx, open.GatewayRef, open.Amount)
	if err != nil {
		s.metrics.Captures.WithLabelValues("error").Inc()
		s.logger.Error("Gateway capture failed", zap.String("order_id", orderID), zap.Error(err))
		return failureResponse("Payment could not be captured, try again later"), nil
	}
	if !result.Approved() {
		s.metrics.Captures.WithLabelValues("refused").Inc()
		s.logger.Warn("Capture refused by gateway",
			zap.String("order_id", orderID),
			zap.String("reason", result.Reason))
		return failureResponse("Payment could not be captured, try again later"), nil
	}

	paid := s.settlementRow(open, domain.TransactionStatusPaid, result.Ref)
	if err := s.transactions.AddSettlement(ctx, paid); err != nil {
		s.metrics.Captures.WithLabelValues("error").Inc()
		if errors.Is(err, domain.ErrAuthorizationConsumed) {
			// The gateway took the capture but a concurrent settlement won
			// the ledger. This needs a human eye on the processor side.
			s.logger.DPanic("Capture succeeded at the gateway for an already settled payment",
				zap.String("order_id", orderID),
				zap.String("payment_id", open.PaymentID))
			return nil, err
		}
		s.logger.Error("Failed to record capture", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to record capture for order %s: %w", orderID, err)
	}

	s.metrics.Captures.WithLabelValues("captured").Inc()
	s.logger.Info("Payment captured",
		zap.String("order_id", orderID),
		zap.String("payment_id", paid.PaymentID),
		zap.Float64("amount", paid.Amount))

	return &TransactionResponse{
		TransactionID: paid.ID,
		PaymentID:     paid.PaymentID,
		Status:        string(paid.Status),
	}, nil
}

func (s *billingService) CancelTransaction(ctx context.Context, orderID string) (*TransactionResponse, error) {
	open, err := s.openAuthorization(ctx, orderID)
	if err != nil {
		s.metrics.Cancellations.WithLabelValues("error").Inc()
		return nil, err
	}

	result, err := s.gateway.Cancel(ctx, open.GatewayRef)
	if err != nil {
		s.metrics.Cancellations.WithLabelValues("error").Inc()
		s.logger.Error("Gateway cancel failed", zap.String("order_id", orderID), zap.Error(err))
		return failureResponse("Payment could not be canceled, try again later"), nil
	}
	if !result.Approved() {
		s.metrics.Cancellations.WithLabelValues("refused").Inc()
		s.logger.Warn("Cancel refused by gateway",
			zap.String("order_id", orderID),
			zap.String("reason", result.Reason))
		return failureResponse("Payment could not be canceled, try again later"), nil
	}

	canceled := s.settlementRow(open, domain.TransactionStatusCanceled, result.Ref)
	if err := s.transactions.AddSettlement(ctx, canceled); err != nil {
		s.metrics.Cancellations.WithLabelValues("error").Inc()
		if errors.Is(err, domain.ErrAuthorizationConsumed) {
			s.logger.Warn("Payment already settled when recording cancel",
				zap.String("order_id", orderID),
				zap.String("payment_id", open.PaymentID))
			return nil, err
		}
		s.logger.Error("Failed to record cancel", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to record cancel for order %s: %w", orderID, err)
	}

	s.metrics.Cancellations.WithLabelValues("canceled").Inc()
	s.logger.Info("Payment canceled",
		zap.String("order_id", orderID),
		zap.String("payment_id", canceled.PaymentID))

	return &TransactionResponse{
		TransactionID: canceled.ID,
		PaymentID:     canceled.PaymentID,
		Status:        string(canceled.Status),
	}, nil
}

func (s *billingService) GetLedger(ctx context.Context, orderID string) ([]*LedgerEntryResponse, error) {
	ledger, err := s.transactions.GetByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to load ledger", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to load ledger for order %s: %w", orderID, err)
	}
	responses := make([]*LedgerEntryResponse, len(ledger))
	for i, tx := range ledger {
		responses[i] = mapTransactionToResponse(tx)
	}
	return responses, nil
}

// findOpenAuthorization returns the order's open authorization, or nil when
// the order holds none. It is the redelivery guard for AuthorizeTransaction.
func (s *billingService) findOpenAuthorization(ctx context.Context, orderID string) (*domain.Transaction, error) {
	ledger, err := s.transactions.GetByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to load ledger", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to load ledger for order %s: %w", orderID, err)
	}
	open, err := domain.FindOpenAuthorization(ledger)
	if err != nil {
		if errors.Is(err, domain.ErrNoOpenAuthorization) {
			return nil, nil
		}
		return nil, err
	}
	return open, nil
}

func (s *billingService) openAuthorization(ctx context.Context, orderID string) (*domain.Transaction, error) {
	ledger, err := s.transactions.GetByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to load ledger", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to load ledger for order %s: %w", orderID, err)
	}
	open, err := domain.FindOpenAuthorization(ledger)
	if err != nil {
		s.logger.Error("No open authorization for order", zap.String("order_id", orderID))
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	return open, nil
}

func (s *billingService) settlementRow(open *domain.Transaction, status domain.TransactionStatus, gatewayRef string) *domain.Transaction {
	return &domain.Transaction{
		ID:           util.GenerateUUID(),
		OrderID:      open.OrderID,
		PaymentID:    open.PaymentID,
		GatewayRef:   gatewayRef,
		Status:       status,
		Amount:       open.Amount,
		CardLastFour: open.CardLastFour,
		CreatedAt:    time.Now().UTC(),
	}
}

// releaseAuthorization voids an authorization that could not be recorded. A
// failed release leaves money reserved with no ledger row pointing at it.
func (s *billingService) releaseAuthorization(ctx context.Context, orderID, gatewayRef string) {
	result, err := s.gateway.Cancel(ctx, gatewayRef)
	if err != nil || !result.Approved() {
		s.metrics.StrandedAuthorizations.Inc()
		s.logger.DPanic("Failed to release unrecorded authorization",
			zap.String("order_id", orderID),
			zap.String("gateway_ref", gatewayRef),
			zap.Error(err))
		return
	}
	s.logger.Info("Released unrecorded authorization",
		zap.String("order_id", orderID),
		zap.String("gateway_ref", gatewayRef))
}

func (s *billingService) recordFailure(ctx context.Context, orderID string, amount float64, lastFour, reason string) {
	row := &domain.Transaction{
		ID:            util.GenerateUUID(),
		OrderID:       orderID,
		PaymentID:     util.GenerateUUID(),
		Status:        domain.TransactionStatusFailed,
		Amount:        amount,
		CardLastFour:  lastFour,
		FailureReason: reason,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.transactions.Add(ctx, row); err != nil {
		s.logger.Error("Failed to record failed transaction", zap.String("order_id", orderID), zap.Error(err))
	}
}

func failureResponse(message string) *TransactionResponse {
	return &TransactionResponse{
		Failures: []validation.Failure{{Field: "payment", Message: message}},
	}
}
