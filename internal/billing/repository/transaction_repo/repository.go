package transaction_repo

import (
	"context"

	"github.com/henriquesd/dev-store/internal/billing/domain"
)

// TransactionRepository persists the append-only billing ledger. Settlement
// uniqueness is enforced by a partial unique index on payment_id. The
// open-authorization check only sees committed rows; duplicate authorize
// requests for an order are serialized upstream (they share a request
// partition key) and a conflict is replayed by the service.
type TransactionRepository interface {
	// AddAuthorized appends an AUTHORIZED row, conditional on the order
	// holding no open authorization. Returns
	// domain.ErrOpenAuthorizationExists when one is already open.
	AddAuthorized(ctx context.Context, tx *domain.Transaction) error

	// AddSettlement appends a PAID or CANCELED row, conditional on the
	// payment not having been settled before. Returns
	// domain.ErrAuthorizationConsumed when a settlement row already exists
	// for the payment.
	AddSettlement(ctx context.Context, tx *domain.Transaction) error

	// Add appends a row unconditionally. Only DENIED and FAILED rows, which
	// carry no invariant, go through here.
	Add(ctx context.Context, tx *domain.Transaction) error

	// GetByOrderID returns the order's ledger oldest first.
	GetByOrderID(ctx context.Context, orderID string) ([]*domain.Transaction, error)
}
