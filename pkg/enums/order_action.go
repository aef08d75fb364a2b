package enums

import "fmt"

// OrderAction names a transition applied to an order.
type OrderAction string

const (
	OrderActionRecordPayment         OrderAction = "record_payment"
	OrderActionChoosePackaging       OrderAction = "choose_packaging"
	OrderActionSubmitPhotos          OrderAction = "submit_photos"
	OrderActionSellerVerifyPackaging OrderAction = "seller_verify_packaging"
	OrderActionAdminVerifyPackaging  OrderAction = "admin_verify_packaging"
	OrderActionAdminRejectPackaging  OrderAction = "admin_reject_packaging"
	OrderActionCreateLabel           OrderAction = "create_label"
	OrderActionMarkShipped           OrderAction = "mark_shipped"
	OrderActionMarkDelivered         OrderAction = "mark_delivered"
	OrderActionConfirmReceipt        OrderAction = "confirm_receipt"
	OrderActionOpenDispute           OrderAction = "open_dispute"
	OrderActionRefund                OrderAction = "refund"
)

var validOrderActions = []OrderAction{
	OrderActionRecordPayment,
	OrderActionChoosePackaging,
	OrderActionSubmitPhotos,
	OrderActionSellerVerifyPackaging,
	OrderActionAdminVerifyPackaging,
	OrderActionAdminRejectPackaging,
	OrderActionCreateLabel,
	OrderActionMarkShipped,
	OrderActionMarkDelivered,
	OrderActionConfirmReceipt,
	OrderActionOpenDispute,
	OrderActionRefund,
}

// String implements fmt.Stringer.
func (v OrderAction) String() string {
	return string(v)
}

// IsValid reports whether the value is a known OrderAction.
func (v OrderAction) IsValid() bool {
	for _, candidate := range validOrderActions {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseOrderAction converts raw input into a OrderAction.
func ParseOrderAction(value string) (OrderAction, error) {
	for _, candidate := range validOrderActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order action %q", value)
}
