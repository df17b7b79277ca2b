package order_repo

import (
	"context"
	"errors"

	"github.com/henriquesd/dev-store/internal/order/domain"
	"github.com/henriquesd/dev-store/internal/outbox"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepository interface {
	// SaveCheckout persists the order, its items, the voucher redemption
	// decrement (when the order carries one) and the outbox messages as a
	// single transaction. It returns domain.ErrVoucherExhausted when the
	// voucher ran out of redemptions at commit time; in that case nothing
	// is persisted.
	SaveCheckout(ctx context.Context, order *domain.Order, msgs []*outbox.Message) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByClientID(ctx context.Context, clientID string) ([]*domain.Order, error)
}
