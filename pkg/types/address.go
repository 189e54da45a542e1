package types

import (
	"fmt"
	"strings"
)

// Address is the shipping destination stored as JSON on users and orders.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

const defaultCountry = "IN"

// Normalize trims every field and fills the default country.
func (a Address) Normalize() Address {
	out := a
	out.Line1 = strings.TrimSpace(a.Line1)
	out.City = strings.TrimSpace(a.City)
	out.State = strings.TrimSpace(a.State)
	out.PostalCode = strings.TrimSpace(a.PostalCode)
	out.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	if out.Country == "" {
		out.Country = defaultCountry
	}
	out.Line2 = trimmedOrNil(a.Line2)
	out.Phone = trimmedOrNil(a.Phone)
	return out
}

// Validate reports the first missing required field.
func (a Address) Validate() error {
	n := a.Normalize()
	switch {
	case n.Line1 == "":
		return fmt.Errorf("address: missing line1")
	case n.City == "":
		return fmt.Errorf("address: missing city")
	case n.State == "":
		return fmt.Errorf("address: missing state")
	case n.PostalCode == "":
		return fmt.Errorf("address: missing postal_code")
	}
	return nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
