package billing

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/billing/app/billing"
)

func RegisterRoutes(r chi.Router, s billing.BillingService, l *zap.Logger) {
	handler := NewBillingHandler(s, l.With(zap.String("component", "BillingHTTPHandler")))

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/{orderID}/capture", handler.CaptureTransaction)
		r.Post("/{orderID}/cancel", handler.CancelTransaction)
		r.Get("/{orderID}", handler.GetLedger)
	})
}
