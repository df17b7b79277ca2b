package domain

import (
	"errors"
	"time"
)

type TransactionStatus string

const (
	TransactionStatusAuthorized TransactionStatus = "AUTHORIZED"
	TransactionStatusDenied     TransactionStatus = "DENIED"
	TransactionStatusPaid       TransactionStatus = "PAID"
	TransactionStatusCanceled   TransactionStatus = "CANCELED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
)

var (
	// ErrNoOpenAuthorization signals a consistency fault: a capture or
	// cancel arrived for an order that holds no open authorization. It is
	// not a validation failure and must surface as one to operators.
	ErrNoOpenAuthorization = errors.New("no open authorization for order")

	// ErrOpenAuthorizationExists guards the one-open-authorization rule at
	// write time.
	ErrOpenAuthorizationExists = errors.New("order already has an open authorization")

	// ErrAuthorizationConsumed is returned when a capture or cancel races a
	// concurrent writer and the authorization was already settled.
	ErrAuthorizationConsumed = errors.New("authorization already consumed")
)

// Transaction is one row of the append-only billing ledger. Rows are never
// updated; every state change is a new row sharing the PaymentID of the
// authorization it settles.
type Transaction struct {
	ID            string
	OrderID       string
	PaymentID     string
	GatewayRef    string
	Status        TransactionStatus
	Amount        float64
	CardLastFour  string
	FailureReason string
	CreatedAt     time.Time
}

// FindOpenAuthorization returns the AUTHORIZED transaction for which no
// PAID or CANCELED row exists yet. The ledger invariant guarantees at most
// one such row per order.
func FindOpenAuthorization(ledger []*Transaction) (*Transaction, error) {
	settled := make(map[string]bool)
	for _, tx := range ledger {
		if tx.Status == TransactionStatusPaid || tx.Status == TransactionStatusCanceled {
			settled[tx.PaymentID] = true
		}
	}
	for _, tx := range ledger {
		if tx.Status == TransactionStatusAuthorized && !settled[tx.PaymentID] {
			return tx, nil
		}
	}
	return nil, ErrNoOpenAuthorization
}
