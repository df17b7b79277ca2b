package checkout

import (
	"github.com/henriquesd/dev-store/internal/order/domain"
	"github.com/henriquesd/dev-store/internal/validation"
)

type ItemRequest struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type AddressRequest struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	ZipCode      string `json:"zip_code"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// CheckoutRequest carries the client-declared totals alongside the items so
// the workflow can detect pricing tampering.
type CheckoutRequest struct {
	ClientID    string         `json:"client_id"`
	Items       []ItemRequest  `json:"items"`
	Amount      float64        `json:"amount"`
	Discount    float64        `json:"discount"`
	HasVoucher  bool           `json:"has_voucher"`
	VoucherCode string         `json:"voucher_code"`
	Address     AddressRequest `json:"address"`

	Holder       string `json:"holder"`
	CardNumber   string `json:"card_number"`
	Expiration   string `json:"expiration"`
	SecurityCode string `json:"security_code"`
}

type CheckoutResponse struct {
	OrderID  string               `json:"order_id,omitempty"`
	Status   string               `json:"status,omitempty"`
	Amount   float64              `json:"amount,omitempty"`
	Discount float64              `json:"discount,omitempty"`
	Failures []validation.Failure `json:"failures,omitempty"`
}

func (r *CheckoutResponse) Valid() bool {
	return len(r.Failures) == 0
}

type OrderResponse struct {
	ID          string        `json:"id"`
	ClientID    string        `json:"client_id"`
	Items       []ItemRequest `json:"items"`
	Amount      float64       `json:"amount"`
	Discount    float64       `json:"discount"`
	VoucherCode string        `json:"voucher_code,omitempty"`
	Status      string        `json:"status"`
}

type VoucherResponse struct {
	Code          string  `json:"code"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
	RemainingUses int     `json:"remaining_uses"`
}

func mapOrderToResponse(order *domain.Order) *OrderResponse {
	items := make([]ItemRequest, len(order.Items))
	for i, item := range order.Items {
		items[i] = ItemRequest{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}
	return &OrderResponse{
		ID:          order.ID,
		ClientID:    order.ClientID,
		Items:       items,
		Amount:      order.Amount,
		Discount:    order.Discount,
		VoucherCode: order.VoucherCode,
		Status:      string(order.Status),
	}
}

func mapVoucherToResponse(v *domain.Voucher) *VoucherResponse {
	return &VoucherResponse{
		Code:          v.Code,
		DiscountType:  string(v.DiscountType),
		DiscountValue: v.DiscountValue,
		RemainingUses: v.RemainingUses,
	}
}
