package cache

import (
	"context"
	"errors"

	"github.com/henriquesd/dev-store/internal/order/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// VoucherCache is a read cache in front of the voucher ledger. It only
// serves lookups; redemption counts are decremented at the database, and a
// consumed voucher is invalidated so the next lookup sees fresh state.
type VoucherCache interface {
	Get(ctx context.Context, code string) (*domain.Voucher, error)
	Set(ctx context.Context, voucher *domain.Voucher) error
	Invalidate(ctx context.Context, code string) error
}
