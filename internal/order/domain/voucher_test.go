package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validVoucher() *Voucher {
	return &Voucher{
		Code:          "SAVE10",
		DiscountType:  DiscountTypeFixed,
		DiscountValue: 10,
		RemainingUses: 1,
		Active:        true,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
		MinOrderValue: 50,
	}
}

func TestVoucherValidate_Passes(t *testing.T) {
	result := validVoucher().Validate(100)
	assert.True(t, result.Valid())
}

func TestVoucherValidate_EachRuleContributesItsOwnFailure(t *testing.T) {
	v := validVoucher()
	v.Active = false
	v.ExpiresAt = time.Now().Add(-time.Hour)
	v.RemainingUses = 0

	result := v.Validate(30)

	assert.False(t, result.Valid())
	assert.Len(t, result.Failures, 4)
}

func TestVoucherValidate_ExhaustedAlwaysFails(t *testing.T) {
	v := validVoucher()
	v.RemainingUses = 0

	result := v.Validate(100)

	assert.False(t, result.Valid())
	assert.Contains(t, result.Messages(), "This voucher has no redemptions left")
}

func TestVoucherValidate_MinimumOrderValue(t *testing.T) {
	v := validVoucher()

	assert.False(t, v.Validate(49.99).Valid())
	assert.True(t, v.Validate(50).Valid())
}

func TestVoucherDiscount(t *testing.T) {
	cases := []struct {
		name     string
		voucher  Voucher
		total    float64
		expected float64
	}{
		{"fixed", Voucher{DiscountType: DiscountTypeFixed, DiscountValue: 10}, 100, 10},
		{"percentage", Voucher{DiscountType: DiscountTypePercentage, DiscountValue: 25}, 200, 50},
		{"fixed above total clamps", Voucher{DiscountType: DiscountTypeFixed, DiscountValue: 150}, 100, 100},
		{"negative value clamps to zero", Voucher{DiscountType: DiscountTypeFixed, DiscountValue: -5}, 100, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.voucher.Discount(tc.total))
		})
	}
}
