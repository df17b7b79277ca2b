package voucher_repo

import (
	"context"

	"github.com/henriquesd/dev-store/internal/infrastructure/database"
	"github.com/henriquesd/dev-store/internal/order/domain"
)

type VoucherRepository interface {
	// GetByCode returns domain.ErrVoucherNotFound when the code is unknown.
	GetByCode(ctx context.Context, code string) (*domain.Voucher, error)
	// DecrementRemainingTx consumes one redemption. The decrement is
	// conditional on remaining_uses > 0 so concurrent checkouts cannot
	// drive the count negative; it returns domain.ErrVoucherExhausted when
	// the condition fails.
	DecrementRemainingTx(ctx context.Context, q database.Querier, code string) error
}
