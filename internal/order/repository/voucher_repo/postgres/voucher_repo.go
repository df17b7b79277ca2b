package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/infrastructure/database"
	"github.com/henriquesd/dev-store/internal/order/domain"
	"github.com/henriquesd/dev-store/internal/order/repository/voucher_repo"
)

type pgVoucherRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewVoucherRepository(db *sql.DB, l *zap.Logger) voucher_repo.VoucherRepository {
	return &pgVoucherRepository{db: db, logger: l}
}

func (r *pgVoucherRepository) GetByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	query := `SELECT code, discount_type, discount_value, remaining_uses, active, expires_at, min_order_value, created_at, updated_at
		FROM vouchers WHERE code = $1`
	v := &domain.Voucher{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&v.Code, &v.DiscountType, &v.DiscountValue, &v.RemainingUses, &v.Active,
		&v.ExpiresAt, &v.MinOrderValue, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVoucherNotFound
		}
		r.logger.Error("Failed to get voucher by code", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get voucher %s: %w", code, err)
	}
	return v, nil
}

func (r *pgVoucherRepository) DecrementRemainingTx(ctx context.Context, q database.Querier, code string) error {
	query := `UPDATE vouchers SET remaining_uses = remaining_uses - 1, updated_at = now()
		WHERE code = $1 AND remaining_uses > 0`
	res, err := q.ExecContext(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to decrement voucher %s: %w", code, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check voucher decrement result: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("Voucher decrement hit an exhausted or unknown code", zap.String("code", code))
		return domain.ErrVoucherExhausted
	}
	return nil
}
