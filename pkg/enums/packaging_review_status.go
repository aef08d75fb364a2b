package enums

import "fmt"

// PackagingReviewStatus is the admin review state of packaging photos.
type PackagingReviewStatus string

const (
	PackagingReviewStatusSubmitted PackagingReviewStatus = "SUBMITTED"
	PackagingReviewStatusVerified  PackagingReviewStatus = "VERIFIED"
	PackagingReviewStatusRejected  PackagingReviewStatus = "REJECTED"
)

var validPackagingReviewStatuses = []PackagingReviewStatus{
	PackagingReviewStatusSubmitted,
	PackagingReviewStatusVerified,
	PackagingReviewStatusRejected,
}

// String implements fmt.Stringer.
func (v PackagingReviewStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known PackagingReviewStatus.
func (v PackagingReviewStatus) IsValid() bool {
	for _, candidate := range validPackagingReviewStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParsePackagingReviewStatus converts raw input into a PackagingReviewStatus.
func ParsePackagingReviewStatus(value string) (PackagingReviewStatus, error) {
	for _, candidate := range validPackagingReviewStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid packaging review status %q", value)
}
