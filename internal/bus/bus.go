package bus

import (
	"context"
	"errors"
)

// RequestType discriminates the billing operations carried over the
// request topic.
type RequestType string

const (
	RequestTypeAuthorize RequestType = "payment.authorize"
	RequestTypeCapture   RequestType = "payment.capture"
	RequestTypeCancel    RequestType = "payment.cancel"
)

// Header names used on request and reply messages.
const (
	HeaderCorrelationID = "correlation_id"
	HeaderRequestType   = "request_type"
	HeaderReplyTo       = "reply_to"
)

// ErrRequestTimeout is returned when no reply arrived within the request
// timeout. Callers must treat it as a denial, never as a success.
var ErrRequestTimeout = errors.New("payment request timed out")

type AuthorizePaymentRequest struct {
	OrderID      string  `json:"order_id"`
	ClientID     string  `json:"client_id"`
	Amount       float64 `json:"amount"`
	Holder       string  `json:"holder"`
	CardNumber   string  `json:"card_number"`
	Expiration   string  `json:"expiration"`
	SecurityCode string  `json:"security_code"`
}

type CapturePaymentRequest struct {
	OrderID string `json:"order_id"`
}

type CancelPaymentRequest struct {
	OrderID string `json:"order_id"`
}

// PaymentReply is the typed response for every billing request.
type PaymentReply struct {
	Valid         bool     `json:"valid"`
	Errors        []string `json:"errors,omitempty"`
	TransactionID string   `json:"transaction_id,omitempty"`
	PaymentID     string   `json:"payment_id,omitempty"`
}

// PaymentClient is the order side's view of the billing service. The
// checkout workflow never talks to the transport directly.
type PaymentClient interface {
	Authorize(ctx context.Context, req *AuthorizePaymentRequest) (*PaymentReply, error)
	Cancel(ctx context.Context, orderID string) (*PaymentReply, error)
}
