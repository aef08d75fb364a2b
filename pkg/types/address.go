package types

import "strings"

// PostalAddress is a UK-style delivery address captured at checkout or on a profile.
type PostalAddress struct {
	Name     string `json:"name" gorm:"column:name"`
	Line1    string `json:"line1" gorm:"column:line1"`
	Line2    string `json:"line2,omitempty" gorm:"column:line2"`
	City     string `json:"city" gorm:"column:city"`
	Postcode string `json:"postcode" gorm:"column:postcode"`
	Country  string `json:"country" gorm:"column:country"`
}

// MissingFields lists the required fields that are blank. Line2 is optional.
func (a PostalAddress) MissingFields() []string {
	missing := []string{}
	if strings.TrimSpace(a.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(a.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.Postcode) == "" {
		missing = append(missing, "postcode")
	}
	if strings.TrimSpace(a.Country) == "" {
		missing = append(missing, "country")
	}
	return missing
}

// IsComplete reports whether every required field is present.
func (a PostalAddress) IsComplete() bool {
	return len(a.MissingFields()) == 0
}

// Normalize trims whitespace and upper-cases the postcode and country code.
func (a PostalAddress) Normalize() PostalAddress {
	return PostalAddress{
		Name:     strings.TrimSpace(a.Name),
		Line1:    strings.TrimSpace(a.Line1),
		Line2:    strings.TrimSpace(a.Line2),
		City:     strings.TrimSpace(a.City),
		Postcode: strings.ToUpper(strings.TrimSpace(a.Postcode)),
		Country:  strings.ToUpper(strings.TrimSpace(a.Country)),
	}
}
