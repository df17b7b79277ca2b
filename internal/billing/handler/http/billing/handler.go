package billing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/billing/app/billing"
	"github.com/henriquesd/dev-store/internal/billing/domain"
)

type BillingHandler struct {
	service billing.BillingService
	logger  *zap.Logger
}

func NewBillingHandler(s billing.BillingService, l *zap.Logger) *BillingHandler {
	return &BillingHandler{service: s, logger: l}
}

func (h *BillingHandler) CaptureTransaction(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	res, err := h.service.CaptureTransaction(r.Context(), orderID)
	if err != nil {
		h.writeFault(w, "capture", orderID, err)
		return
	}
	h.writeResponse(w, res)
}

func (h *BillingHandler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	res, err := h.service.CancelTransaction(r.Context(), orderID)
	if err != nil {
		h.writeFault(w, "cancel", orderID, err)
		return
	}
	h.writeResponse(w, res)
}

func (h *BillingHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	ledger, err := h.service.GetLedger(r.Context(), orderID)
	if err != nil {
		h.logger.Error("Error loading ledger", zap.String("order_id", orderID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(ledger) == 0 {
		http.Error(w, "No transactions for order", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ledger)
}

// writeFault distinguishes the ledger's consistency faults from ordinary
// failures. A missing or already-settled authorization is a broken saga, so
// it reports as a server fault, never as client error.
func (h *BillingHandler) writeFault(w http.ResponseWriter, operation, orderID string, err error) {
	if errors.Is(err, domain.ErrNoOpenAuthorization) || errors.Is(err, domain.ErrAuthorizationConsumed) {
		h.logger.Error("Consistency fault",
			zap.String("operation", operation),
			zap.String("order_id", orderID),
			zap.Error(err))
		http.Error(w, "Payment state is inconsistent for this order", http.StatusConflict)
		return
	}
	h.logger.Error("Billing operation failed",
		zap.String("operation", operation),
		zap.String("order_id", orderID),
		zap.Error(err))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (h *BillingHandler) writeResponse(w http.ResponseWriter, res *billing.TransactionResponse) {
	w.Header().Set("Content-Type", "application/json")
	if !res.Valid() {
		w.WriteHeader(http.StatusBadRequest)
	}
	json.NewEncoder(w).Encode(res)
}
