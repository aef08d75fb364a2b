package enums

import "fmt"

// PackagingChoice records how the seller will package the item.
type PackagingChoice string

const (
	PackagingChoiceSellerPacks PackagingChoice = "SELLER_PACKS"
	PackagingChoiceTeevoBox    PackagingChoice = "TEEVO_BOX"
)

var validPackagingChoices = []PackagingChoice{
	PackagingChoiceSellerPacks,
	PackagingChoiceTeevoBox,
}

// String implements fmt.Stringer.
func (v PackagingChoice) String() string {
	return string(v)
}

// IsValid reports whether the value is a known PackagingChoice.
func (v PackagingChoice) IsValid() bool {
	for _, candidate := range validPackagingChoices {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParsePackagingChoice converts raw input into a PackagingChoice.
func ParsePackagingChoice(value string) (PackagingChoice, error) {
	for _, candidate := range validPackagingChoices {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid packaging choice %q", value)
}
