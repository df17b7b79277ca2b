package billing

import (
	"time"

	"github.com/henriquesd/dev-store/internal/billing/domain"
	"github.com/henriquesd/dev-store/internal/validation"
)

type AuthorizeRequest struct {
	OrderID      string  `json:"order_id"`
	ClientID     string  `json:"client_id"`
	Amount       float64 `json:"amount"`
	Holder       string  `json:"holder"`
	CardNumber   string  `json:"card_number"`
	Expiration   string  `json:"expiration"`
	SecurityCode string  `json:"security_code"`
}

// TransactionResponse reports the outcome of a billing operation. A refused
// operation carries Failures and no error; failures are business verdicts,
// not faults.
type TransactionResponse struct {
	TransactionID string               `json:"transaction_id,omitempty"`
	PaymentID     string               `json:"payment_id,omitempty"`
	Status        string               `json:"status,omitempty"`
	Failures      []validation.Failure `json:"failures,omitempty"`
}

func (r *TransactionResponse) Valid() bool {
	return len(r.Failures) == 0
}

type LedgerEntryResponse struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	PaymentID     string    `json:"payment_id"`
	Status        string    `json:"status"`
	Amount        float64   `json:"amount"`
	CardLastFour  string    `json:"card_last_four,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func mapTransactionToResponse(tx *domain.Transaction) *LedgerEntryResponse {
	return &LedgerEntryResponse{
		ID:            tx.ID,
		OrderID:       tx.OrderID,
		PaymentID:     tx.PaymentID,
		Status:        string(tx.Status),
		Amount:        tx.Amount,
		CardLastFour:  tx.CardLastFour,
		FailureReason: tx.FailureReason,
		CreatedAt:     tx.CreatedAt,
	}
}

func cardLastFour(number string) string {
	if len(number) < 4 {
		return ""
	}
	return number[len(number)-4:]
}
