package domain

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	OrderStatusDraft          OrderStatus = "DRAFT"
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusAuthorized     OrderStatus = "AUTHORIZED"
	OrderStatusDenied         OrderStatus = "DENIED"
)

var (
	ErrInvalidOrder      = errors.New("invalid order data")
	ErrInvalidTransition = errors.New("illegal order status transition")
)

type OrderItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   float64
}

func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

type Address struct {
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	ZipCode      string
	City         string
	State        string
}

// Order is the aggregate driven by the checkout workflow. Items are fixed at
// construction; only the orchestrator mutates the rest, and never after the
// order has been persisted.
type Order struct {
	ID          string
	ClientID    string
	Items       []OrderItem
	Amount      float64
	Discount    float64
	HasVoucher  bool
	VoucherCode string
	Status      OrderStatus
	Address     Address
	CreatedAt   time.Time
	UpdatedAt   time.Time

	events []Event
}

func NewOrder(id, clientID string, items []OrderItem) (*Order, error) {
	if id == "" || clientID == "" || len(items) == 0 {
		return nil, ErrInvalidOrder
	}
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 || item.UnitPrice <= 0 {
			return nil, ErrInvalidOrder
		}
	}
	now := time.Now().UTC()
	o := &Order{
		ID:        id,
		ClientID:  clientID,
		Items:     items,
		Status:    OrderStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.CalculateAmount()
	return o, nil
}

// ItemsTotal is the gross total before any discount.
func (o *Order) ItemsTotal() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	return total
}

// CalculateAmount recomputes Amount strictly from the line items and the
// associated voucher. Discount never exceeds the gross total.
func (o *Order) CalculateAmount() {
	total := o.ItemsTotal()
	if o.Discount < 0 {
		o.Discount = 0
	}
	if o.Discount > total {
		o.Discount = total
	}
	o.Amount = total - o.Discount
}

// ApplyVoucher associates a validated voucher with the order. Callers must
// run the voucher's validation rules first.
func (o *Order) ApplyVoucher(v *Voucher) {
	o.HasVoucher = true
	o.VoucherCode = v.Code
	o.Discount = v.Discount(o.ItemsTotal())
	o.CalculateAmount()
}

func (o *Order) SetAddress(a Address) {
	o.Address = a
}

func (o *Order) MarkPendingPayment() error {
	if o.Status != OrderStatusDraft {
		return ErrInvalidTransition
	}
	o.Status = OrderStatusPendingPayment
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (o *Order) Authorize() error {
	if o.Status != OrderStatusPendingPayment {
		return ErrInvalidTransition
	}
	o.Status = OrderStatusAuthorized
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (o *Order) Deny() error {
	if o.Status != OrderStatusPendingPayment {
		return ErrInvalidTransition
	}
	o.Status = OrderStatusDenied
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// AddEvent queues a domain event. Events are only published after the order
// has been durably committed.
func (o *Order) AddEvent(e Event) {
	o.events = append(o.events, e)
}

func (o *Order) Events() []Event {
	return o.events
}

func (o *Order) ClearEvents() {
	o.events = nil
}
