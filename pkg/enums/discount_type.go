package enums

import "fmt"

// DiscountType selects how a coupon's value is interpreted.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

var validDiscountTypes = []DiscountType{
	DiscountTypePercentage,
	DiscountTypeFixed,
}

// String implements fmt.Stringer.
func (d DiscountType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountType.
func (d DiscountType) IsValid() bool {
	for _, candidate := range validDiscountTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountType converts raw input into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	for _, candidate := range validDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}
