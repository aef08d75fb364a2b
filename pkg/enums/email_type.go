package enums

import "fmt"

// EmailType identifies a transactional email template.
type EmailType string

const (
	EmailTypeOrderConfirmation    EmailType = "ORDER_CONFIRMATION"
	EmailTypeItemSold             EmailType = "ITEM_SOLD"
	EmailTypePaymentReceived      EmailType = "PAYMENT_RECEIVED"
	EmailTypeShippingConfirmation EmailType = "SHIPPING_CONFIRMATION"
	EmailTypeFundsReleased        EmailType = "FUNDS_RELEASED"
	EmailTypePackagingVerified    EmailType = "PACKAGING_VERIFIED"
	EmailTypePackagingRejected    EmailType = "PACKAGING_REJECTED"
)

var validEmailTypes = []EmailType{
	EmailTypeOrderConfirmation,
	EmailTypeItemSold,
	EmailTypePaymentReceived,
	EmailTypeShippingConfirmation,
	EmailTypeFundsReleased,
	EmailTypePackagingVerified,
	EmailTypePackagingRejected,
}

// String implements fmt.Stringer.
func (v EmailType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known EmailType.
func (v EmailType) IsValid() bool {
	for _, candidate := range validEmailTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseEmailType converts raw input into a EmailType.
func ParseEmailType(value string) (EmailType, error) {
	for _, candidate := range validEmailTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid email type %q", value)
}
