package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/order/domain"
	"github.com/henriquesd/dev-store/internal/order/repository/order_repo"
	"github.com/henriquesd/dev-store/internal/order/repository/voucher_repo"
	"github.com/henriquesd/dev-store/internal/outbox"
)

type pgOrderRepository struct {
	db       *sql.DB
	vouchers voucher_repo.VoucherRepository
	outbox   outbox.Repository
	logger   *zap.Logger
}

func NewOrderRepository(db *sql.DB, vouchers voucher_repo.VoucherRepository, outboxRepo outbox.Repository, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, vouchers: vouchers, outbox: outboxRepo, logger: l}
}

func (r *pgOrderRepository) SaveCheckout(ctx context.Context, order *domain.Order, msgs []*outbox.Message) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for checkout", zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic during checkout transaction, rolling back", zap.String("order_id", order.ID))
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			r.logger.Warn("Rolling back checkout transaction", zap.String("order_id", order.ID), zap.Error(err))
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				r.logger.Error("Failed to commit checkout transaction", zap.String("order_id", order.ID), zap.Error(err))
				err = fmt.Errorf("failed to commit checkout: %w", err)
			}
		}
	}()

	orderQuery := `INSERT INTO orders (id, client_id, amount, discount, has_voucher, voucher_code, status,
		address_street, address_number, address_complement, address_neighborhood, address_zip_code, address_city, address_state,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err = tx.ExecContext(ctx, orderQuery,
		order.ID, order.ClientID, order.Amount, order.Discount, order.HasVoucher, order.VoucherCode, order.Status,
		order.Address.Street, order.Address.Number, order.Address.Complement, order.Address.Neighborhood,
		order.Address.ZipCode, order.Address.City, order.Address.State,
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("tx failed to insert order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price) VALUES ($1, $2, $3, $4, $5)`
	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, itemQuery, order.ID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("tx failed to insert order item: %w", err)
		}
	}

	if order.HasVoucher {
		if err = r.vouchers.DecrementRemainingTx(ctx, tx, order.VoucherCode); err != nil {
			return err
		}
	}

	for _, msg := range msgs {
		if err = r.outbox.CreateTx(ctx, tx, msg); err != nil {
			return err
		}
	}

	return err
}

func (r *pgOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT id, client_id, amount, discount, has_voucher, voucher_code, status,
		address_street, address_number, address_complement, address_neighborhood, address_zip_code, address_city, address_state,
		created_at, updated_at
		FROM orders WHERE id = $1`
	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.ClientID, &order.Amount, &order.Discount, &order.HasVoucher, &order.VoucherCode, &order.Status,
		&order.Address.Street, &order.Address.Number, &order.Address.Complement, &order.Address.Neighborhood,
		&order.Address.ZipCode, &order.Address.City, &order.Address.State,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order_repo.ErrOrderNotFound
		}
		r.logger.Error("Failed to get order by ID", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}

	items, err := r.getItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *pgOrderRepository) GetByClientID(ctx context.Context, clientID string) ([]*domain.Order, error) {
	query := `SELECT id, client_id, amount, discount, has_voucher, voucher_code, status,
		address_street, address_number, address_complement, address_neighborhood, address_zip_code, address_city, address_state,
		created_at, updated_at
		FROM orders WHERE client_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		r.logger.Error("Failed to query orders for client", zap.String("client_id", clientID), zap.Error(err))
		return nil, fmt.Errorf("failed to get orders by client ID %s: %w", clientID, err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order := &domain.Order{}
		if err := rows.Scan(
			&order.ID, &order.ClientID, &order.Amount, &order.Discount, &order.HasVoucher, &order.VoucherCode, &order.Status,
			&order.Address.Street, &order.Address.Number, &order.Address.Complement, &order.Address.Neighborhood,
			&order.Address.ZipCode, &order.Address.City, &order.Address.State,
			&order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for _, order := range orders {
		items, err := r.getItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
	}
	return orders, nil
}

func (r *pgOrderRepository) getItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	query := `SELECT product_id, product_name, quantity, unit_price FROM order_items WHERE order_id = $1`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item row: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}
