package orders

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/order/app/checkout"
	"github.com/henriquesd/dev-store/internal/order/domain"
	"github.com/henriquesd/dev-store/internal/order/repository/order_repo"
)

type OrderHandler struct {
	service checkout.CheckoutService
	logger  *zap.Logger
}

func NewOrderHandler(s checkout.CheckoutService, l *zap.Logger) *OrderHandler {
	return &OrderHandler{service: s, logger: l}
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkout.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for Checkout", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.Checkout(r.Context(), &req)
	if err != nil {
		h.logger.Error("Error processing checkout", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !res.Valid() {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(res)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(res)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		h.logger.Warn("Order ID is missing in GetOrder request")
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	res, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order_repo.ErrOrderNotFound) {
			h.logger.Info("Order not found", zap.String("order_id", orderID))
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Error getting order", zap.String("order_id", orderID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (h *OrderHandler) GetOrdersByClient(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	if clientID == "" {
		h.logger.Warn("Client ID is missing in GetOrdersByClient request")
		http.Error(w, "Client ID is required", http.StatusBadRequest)
		return
	}

	res, err := h.service.GetOrdersByClient(r.Context(), clientID)
	if err != nil {
		h.logger.Error("Error getting orders for client", zap.String("client_id", clientID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (h *OrderHandler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		h.logger.Warn("Voucher code is missing in GetVoucher request")
		http.Error(w, "Voucher code is required", http.StatusBadRequest)
		return
	}

	res, err := h.service.GetVoucher(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrVoucherNotFound) {
			h.logger.Info("Voucher not found", zap.String("code", code))
			http.Error(w, "Voucher not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Error getting voucher", zap.String("code", code), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}
