package domain

import (
	"errors"
	"time"

	"github.com/henriquesd/dev-store/internal/validation"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

var (
	ErrVoucherNotFound  = errors.New("voucher not found")
	ErrVoucherExhausted = errors.New("voucher has no redemptions left")
)

// Voucher is administered externally; the checkout workflow only selects and
// consumes it. RemainingUses is decremented atomically at commit time, never
// here.
type Voucher struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue float64
	RemainingUses int
	Active        bool
	ExpiresAt     time.Time
	MinOrderValue float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate runs every rule independently so the caller gets the full list of
// reasons a voucher cannot be applied. orderTotal is the gross total before
// discount.
func (v *Voucher) Validate(orderTotal float64) *validation.Result {
	result := &validation.Result{}
	if !v.Active {
		result.Add("voucher", "This voucher is no longer active")
	}
	if time.Now().After(v.ExpiresAt) {
		result.Add("voucher", "This voucher has expired")
	}
	if v.RemainingUses <= 0 {
		result.Add("voucher", "This voucher has no redemptions left")
	}
	if orderTotal < v.MinOrderValue {
		result.Add("voucher", "The order does not reach the voucher minimum value")
	}
	return result
}

// Discount computes the discount this voucher grants on the given gross
// total, clamped to the total.
func (v *Voucher) Discount(orderTotal float64) float64 {
	var discount float64
	switch v.DiscountType {
	case DiscountTypePercentage:
		discount = orderTotal * v.DiscountValue / 100
	case DiscountTypeFixed:
		discount = v.DiscountValue
	}
	if discount < 0 {
		return 0
	}
	if discount > orderTotal {
		return orderTotal
	}
	return discount
}
