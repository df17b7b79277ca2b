package outbox

import (
	"context"
	"time"

	"github.com/henriquesd/dev-store/internal/infrastructure/database"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Message is a domain event waiting to be published. It is written in the
// same transaction as the state change it announces, so nothing is ever
// published that did not commit.
type Message struct {
	ID          string
	AggregateID string
	EventType   string
	Topic       string
	Key         string
	Payload     []byte
	Status      Status
	CreatedAt   time.Time
	SentAt      *time.Time
}

type Repository interface {
	CreateTx(ctx context.Context, q database.Querier, msg *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	MarkSent(ctx context.Context, id string) error
}
