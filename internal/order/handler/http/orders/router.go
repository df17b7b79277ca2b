package orders

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/order/app/checkout"
)

func RegisterRoutes(r chi.Router, s checkout.CheckoutService, l *zap.Logger) {
	handler := NewOrderHandler(s, l.With(zap.String("component", "OrderHTTPHandler")))

	r.Route("/orders", func(r chi.Router) {
		r.Post("/checkout", handler.Checkout)
		r.Get("/{orderID}", handler.GetOrder)
		r.Get("/client/{clientID}", handler.GetOrdersByClient)
	})
	r.Get("/vouchers/{code}", handler.GetVoucher)
}
