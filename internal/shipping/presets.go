package shipping

import (
	"strings"

	"github.com/teevo/fulfilment-backend/pkg/enums"
	"github.com/teevo/fulfilment-backend/pkg/shippo"
)

// parcelPresets are outer box dimensions in cm and packed weights in kg.
var parcelPresets = map[enums.SizePreset]shippo.Parcel{
	enums.SizePresetSmall:   parcel("35", "25", "12", "1"),
	enums.SizePresetMedium:  parcel("60", "30", "20", "3"),
	enums.SizePresetLarge:   parcel("125", "30", "20", "5"),
	enums.SizePresetGolfBag: parcel("130", "40", "35", "12"),
}

func parcel(length, width, height, weight string) shippo.Parcel {
	return shippo.Parcel{
		Length:       length,
		Width:        width,
		Height:       height,
		DistanceUnit: "cm",
		Weight:       weight,
		MassUnit:     "kg",
	}
}

// ParcelFor returns the parcel for a listing's size preset. Unknown or
// missing presets ship as small items.
func ParcelFor(preset *enums.SizePreset) shippo.Parcel {
	if preset != nil {
		if p, ok := parcelPresets[enums.SizePreset(strings.ToLower(string(*preset)))]; ok {
			return p
		}
	}
	return parcelPresets[enums.SizePresetSmall]
}

// AllowList holds the service-level tokens labels may be bought for, in
// order of preference.
type AllowList []string

// NewAllowList trims, lowercases and de-duplicates tokens.
func NewAllowList(tokens []string) AllowList {
	seen := make(map[string]struct{}, len(tokens))
	out := make(AllowList, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (a AllowList) rank(token string) int {
	token = strings.ToLower(strings.TrimSpace(token))
	for i, t := range a {
		if t == token {
			return i
		}
	}
	return -1
}
