package enums

import "fmt"

// FulfilmentStatus tracks the fine-grained fulfilment pipeline of an order.
type FulfilmentStatus string

const (
	FulfilmentStatusPaid               FulfilmentStatus = "PAID"
	FulfilmentStatusPackagingSubmitted FulfilmentStatus = "PACKAGING_SUBMITTED"
	FulfilmentStatusPackagingVerified  FulfilmentStatus = "PACKAGING_VERIFIED"
	FulfilmentStatusLabelCreated       FulfilmentStatus = "LABEL_CREATED"
	FulfilmentStatusShipped            FulfilmentStatus = "SHIPPED"
	FulfilmentStatusDelivered          FulfilmentStatus = "DELIVERED"
	FulfilmentStatusCompleted          FulfilmentStatus = "COMPLETED"
)

var validFulfilmentStatuses = []FulfilmentStatus{
	FulfilmentStatusPaid,
	FulfilmentStatusPackagingSubmitted,
	FulfilmentStatusPackagingVerified,
	FulfilmentStatusLabelCreated,
	FulfilmentStatusShipped,
	FulfilmentStatusDelivered,
	FulfilmentStatusCompleted,
}

// String implements fmt.Stringer.
func (v FulfilmentStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known FulfilmentStatus.
func (v FulfilmentStatus) IsValid() bool {
	for _, candidate := range validFulfilmentStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseFulfilmentStatus converts raw input into a FulfilmentStatus.
func ParseFulfilmentStatus(value string) (FulfilmentStatus, error) {
	for _, candidate := range validFulfilmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfilment status %q", value)
}

// Rank returns the pipeline position of the status, or -1 when unknown.
func (v FulfilmentStatus) Rank() int {
	for i, candidate := range validFulfilmentStatuses {
		if candidate == v {
			return i
		}
	}
	return -1
}

// Before reports whether v sits strictly earlier in the pipeline than other.
func (v FulfilmentStatus) Before(other FulfilmentStatus) bool {
	return v.Rank() >= 0 && v.Rank() < other.Rank()
}
