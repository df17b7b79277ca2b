package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoItems() []OrderItem {
	return []OrderItem{
		{ProductID: "sku-1", ProductName: "Keyboard", Quantity: 2, UnitPrice: 30},
		{ProductID: "sku-2", ProductName: "Mouse", Quantity: 1, UnitPrice: 40},
	}
}

func TestNewOrder_ComputesAmountFromItems(t *testing.T) {
	o, err := NewOrder("order-1", "client-1", twoItems())

	require.NoError(t, err)
	assert.Equal(t, OrderStatusDraft, o.Status)
	assert.Equal(t, 100.0, o.Amount)
	assert.Equal(t, 0.0, o.Discount)
}

func TestNewOrder_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name     string
		id       string
		clientID string
		items    []OrderItem
	}{
		{"empty id", "", "client-1", twoItems()},
		{"empty client", "order-1", "", twoItems()},
		{"no items", "order-1", "client-1", nil},
		{"zero quantity", "order-1", "client-1", []OrderItem{{ProductID: "sku-1", Quantity: 0, UnitPrice: 10}}},
		{"negative price", "order-1", "client-1", []OrderItem{{ProductID: "sku-1", Quantity: 1, UnitPrice: -1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOrder(tc.id, tc.clientID, tc.items)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
}

func TestApplyVoucher_FixedDiscountRecomputesAmount(t *testing.T) {
	o, err := NewOrder("order-1", "client-1", twoItems())
	require.NoError(t, err)

	v := &Voucher{
		Code:          "SAVE10",
		DiscountType:  DiscountTypeFixed,
		DiscountValue: 10,
		RemainingUses: 1,
		Active:        true,
		ExpiresAt:     time.Now().Add(time.Hour),
	}
	o.ApplyVoucher(v)

	assert.True(t, o.HasVoucher)
	assert.Equal(t, "SAVE10", o.VoucherCode)
	assert.Equal(t, 10.0, o.Discount)
	assert.Equal(t, 90.0, o.Amount)
}

func TestApplyVoucher_PercentageDiscount(t *testing.T) {
	o, err := NewOrder("order-1", "client-1", twoItems())
	require.NoError(t, err)

	v := &Voucher{Code: "HALF", DiscountType: DiscountTypePercentage, DiscountValue: 50}
	o.ApplyVoucher(v)

	assert.Equal(t, 50.0, o.Discount)
	assert.Equal(t, 50.0, o.Amount)
}

func TestCalculateAmount_DiscountNeverExceedsTotal(t *testing.T) {
	o, err := NewOrder("order-1", "client-1", twoItems())
	require.NoError(t, err)

	v := &Voucher{Code: "BIG", DiscountType: DiscountTypeFixed, DiscountValue: 500}
	o.ApplyVoucher(v)

	assert.Equal(t, 100.0, o.Discount)
	assert.Equal(t, 0.0, o.Amount)
}

func TestStatusTransitions(t *testing.T) {
	o, err := NewOrder("order-1", "client-1", twoItems())
	require.NoError(t, err)

	assert.ErrorIs(t, o.Authorize(), ErrInvalidTransition)
	require.NoError(t, o.MarkPendingPayment())
	assert.ErrorIs(t, o.MarkPendingPayment(), ErrInvalidTransition)
	require.NoError(t, o.Authorize())
	assert.Equal(t, OrderStatusAuthorized, o.Status)
	assert.ErrorIs(t, o.Deny(), ErrInvalidTransition)
}

func TestDeny_FromPendingPayment(t *testing.T) {
	o, err := NewOrder("order-1", "client-1", twoItems())
	require.NoError(t, err)
	require.NoError(t, o.MarkPendingPayment())

	require.NoError(t, o.Deny())
	assert.Equal(t, OrderStatusDenied, o.Status)
}

func TestEvents_QueuedAndCleared(t *testing.T) {
	o, err := NewOrder("order-1", "client-1", twoItems())
	require.NoError(t, err)

	o.AddEvent(OrderAuthorized{OrderID: o.ID, ClientID: o.ClientID})
	require.Len(t, o.Events(), 1)
	assert.Equal(t, "OrderAuthorized", o.Events()[0].EventName())

	o.ClearEvents()
	assert.Empty(t, o.Events())
}
