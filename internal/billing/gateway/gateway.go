package gateway

import (
	"context"
	"errors"
)

// ErrGatewayUnavailable covers transport-level failures talking to the card
// processor, as opposed to the processor refusing the card.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

type Status string

const (
	StatusApproved Status = "APPROVED"
	StatusRefused  Status = "REFUSED"
)

type Card struct {
	Holder       string
	Number       string
	Expiration   string
	SecurityCode string
}

// Result is the processor's verdict. Ref identifies the operation at the
// processor and is required to capture or cancel an authorization later.
type Result struct {
	Status Status
	Ref    string
	Reason string
}

func (r *Result) Approved() bool {
	return r != nil && r.Status == StatusApproved
}

// Gateway is the billing service's view of the external card processor.
type Gateway interface {
	Authorize(ctx context.Context, card Card, amount float64) (*Result, error)
	Capture(ctx context.Context, ref string, amount float64) (*Result, error)
	Cancel(ctx context.Context, ref string) (*Result, error)
}
