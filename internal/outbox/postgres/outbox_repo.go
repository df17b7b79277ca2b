package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/infrastructure/database"
	"github.com/henriquesd/dev-store/internal/outbox"
)

type pgOutboxRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOutboxRepository(db *sql.DB, l *zap.Logger) outbox.Repository {
	return &pgOutboxRepository{db: db, logger: l}
}

func (r *pgOutboxRepository) CreateTx(ctx context.Context, q database.Querier, msg *outbox.Message) error {
	query := `INSERT INTO outbox_messages (id, aggregate_id, event_type, topic, key, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := q.ExecContext(ctx, query,
		msg.ID, msg.AggregateID, msg.EventType, msg.Topic, msg.Key, msg.Payload, msg.Status, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	r.logger.Debug("Outbox message inserted", zap.String("message_id", msg.ID), zap.String("event_type", msg.EventType))
	return nil
}

func (r *pgOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	query := `SELECT id, aggregate_id, event_type, topic, key, payload, status, created_at, sent_at
		FROM outbox_messages WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, outbox.StatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", zap.Error(err))
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*outbox.Message
	for rows.Next() {
		msg := &outbox.Message{}
		var sentAt sql.NullTime
		if err := rows.Scan(&msg.ID, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.Key,
			&msg.Payload, &msg.Status, &msg.CreatedAt, &sentAt); err != nil {
			r.logger.Error("Failed to scan outbox message row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan outbox message row: %w", err)
		}
		if sentAt.Valid {
			msg.SentAt = &sentAt.Time
		}
		messages = append(messages, msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return messages, nil
}

func (r *pgOutboxRepository) MarkSent(ctx context.Context, id string) error {
	query := `UPDATE outbox_messages SET status = $1, sent_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, outbox.StatusSent, time.Now(), id, outbox.StatusPending)
	if err != nil {
		r.logger.Error("Failed to mark outbox message as sent", zap.String("message_id", id), zap.Error(err))
		return fmt.Errorf("failed to mark outbox message %s as sent: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("No rows affected when marking outbox message as sent, it might be already sent or not exist",
			zap.String("message_id", id))
	}
	return nil
}
