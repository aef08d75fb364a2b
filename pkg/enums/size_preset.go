package enums

import "fmt"

// SizePreset is the listing-level parcel size hint used for label rates.
type SizePreset string

const (
	SizePresetSmall   SizePreset = "small"
	SizePresetMedium  SizePreset = "medium"
	SizePresetLarge   SizePreset = "large"
	SizePresetGolfBag SizePreset = "golf_bag"
)

var validSizePresets = []SizePreset{
	SizePresetSmall,
	SizePresetMedium,
	SizePresetLarge,
	SizePresetGolfBag,
}

// String implements fmt.Stringer.
func (v SizePreset) String() string {
	return string(v)
}

// IsValid reports whether the value is a known SizePreset.
func (v SizePreset) IsValid() bool {
	for _, candidate := range validSizePresets {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseSizePreset converts raw input into a SizePreset.
func ParseSizePreset(value string) (SizePreset, error) {
	for _, candidate := range validSizePresets {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid size preset %q", value)
}
