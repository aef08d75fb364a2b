package enums

import "fmt"

// SaleStatus is the coarse order status shown to buyers and sellers.
type SaleStatus string

const (
	SaleStatusPending  SaleStatus = "pending"
	SaleStatusShipped  SaleStatus = "shipped"
	SaleStatusComplete SaleStatus = "complete"
	SaleStatusRefunded SaleStatus = "refunded"
	SaleStatusDispute  SaleStatus = "dispute"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusPending,
	SaleStatusShipped,
	SaleStatusComplete,
	SaleStatusRefunded,
	SaleStatusDispute,
}

// String implements fmt.Stringer.
func (v SaleStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known SaleStatus.
func (v SaleStatus) IsValid() bool {
	for _, candidate := range validSaleStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseSaleStatus converts raw input into a SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	for _, candidate := range validSaleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale status %q", value)
}
