package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/billing/domain"
	"github.com/henriquesd/dev-store/internal/billing/repository/transaction_repo"
)

type pgTransactionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewTransactionRepository(db *sql.DB, l *zap.Logger) transaction_repo.TransactionRepository {
	return &pgTransactionRepository{db: db, logger: l}
}

const insertColumns = `id, order_id, payment_id, gateway_ref, status, amount, card_last_four, failure_reason, created_at`

// AddAuthorized inserts only when the order has no AUTHORIZED row left open,
// i.e. every previous authorization already has a PAID or CANCELED row.
// Under READ COMMITTED the NOT EXISTS sees committed rows only; duplicate
// requests for an order share a partition key and arrive one at a time, and
// the service replays the existing verdict on a conflict.
func (r *pgTransactionRepository) AddAuthorized(ctx context.Context, tx *domain.Transaction) error {
	query := fmt.Sprintf(`INSERT INTO transactions (%s)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
		WHERE NOT EXISTS (
			SELECT 1 FROM transactions a
			WHERE a.order_id = $2 AND a.status = 'AUTHORIZED'
			AND NOT EXISTS (
				SELECT 1 FROM transactions s
				WHERE s.payment_id = a.payment_id AND s.status IN ('PAID', 'CANCELED')
			)
		)`, insertColumns)

	res, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.OrderID, tx.PaymentID, tx.GatewayRef, tx.Status,
		tx.Amount, tx.CardLastFour, tx.FailureReason, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert authorized transaction for order %s: %w", tx.OrderID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check authorized insert result: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("Rejected second open authorization for order", zap.String("order_id", tx.OrderID))
		return domain.ErrOpenAuthorizationExists
	}
	return nil
}

// AddSettlement inserts only when no settlement row exists yet for the
// payment, so an authorization is captured or canceled at most once.
// uq_transactions_payment_settlement backs the check, so concurrent
// settlements cannot both land.
func (r *pgTransactionRepository) AddSettlement(ctx context.Context, tx *domain.Transaction) error {
	query := fmt.Sprintf(`INSERT INTO transactions (%s)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
		WHERE NOT EXISTS (
			SELECT 1 FROM transactions s
			WHERE s.payment_id = $3 AND s.status IN ('PAID', 'CANCELED')
		)`, insertColumns)

	res, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.OrderID, tx.PaymentID, tx.GatewayRef, tx.Status,
		tx.Amount, tx.CardLastFour, tx.FailureReason, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert settlement for payment %s: %w", tx.PaymentID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check settlement insert result: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("Payment already settled",
			zap.String("order_id", tx.OrderID),
			zap.String("payment_id", tx.PaymentID))
		return domain.ErrAuthorizationConsumed
	}
	return nil
}

func (r *pgTransactionRepository) Add(ctx context.Context, tx *domain.Transaction) error {
	query := fmt.Sprintf(`INSERT INTO transactions (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, insertColumns)
	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.OrderID, tx.PaymentID, tx.GatewayRef, tx.Status,
		tx.Amount, tx.CardLastFour, tx.FailureReason, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction for order %s: %w", tx.OrderID, err)
	}
	return nil
}

func (r *pgTransactionRepository) GetByOrderID(ctx context.Context, orderID string) ([]*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE order_id = $1 ORDER BY created_at, id`, insertColumns)
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var ledger []*domain.Transaction
	for rows.Next() {
		tx := &domain.Transaction{}
		if err := rows.Scan(
			&tx.ID, &tx.OrderID, &tx.PaymentID, &tx.GatewayRef, &tx.Status,
			&tx.Amount, &tx.CardLastFour, &tx.FailureReason, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		ledger = append(ledger, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction rows: %w", err)
	}
	return ledger, nil
}
