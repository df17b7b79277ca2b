package domain

import "time"

// Event is a domain event raised by the Order aggregate. Events are drained
// into the transactional outbox and published only after commit.
type Event interface {
	EventName() string
}

type OrderAuthorized struct {
	OrderID      string    `json:"order_id"`
	ClientID     string    `json:"client_id"`
	Amount       float64   `json:"amount"`
	Discount     float64   `json:"discount"`
	AuthorizedAt time.Time `json:"authorized_at"`
}

func (OrderAuthorized) EventName() string { return "OrderAuthorized" }
