package enums

import "fmt"

// BoxType is a Teevo-supplied shipping box size.
type BoxType string

const (
	BoxTypePutter      BoxType = "putter"
	BoxTypeDriver      BoxType = "driver"
	BoxTypeIronSet     BoxType = "iron_set"
	BoxTypeGolfBag     BoxType = "golf_bag"
	BoxTypeAccessories BoxType = "accessories"
)

var validBoxTypes = []BoxType{
	BoxTypePutter,
	BoxTypeDriver,
	BoxTypeIronSet,
	BoxTypeGolfBag,
	BoxTypeAccessories,
}

// String implements fmt.Stringer.
func (v BoxType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known BoxType.
func (v BoxType) IsValid() bool {
	for _, candidate := range validBoxTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseBoxType converts raw input into a BoxType.
func ParseBoxType(value string) (BoxType, error) {
	for _, candidate := range validBoxTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid box type %q", value)
}
