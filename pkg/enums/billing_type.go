package enums

import "fmt"

// BillingType selects how a service package is billed.
type BillingType string

const (
	BillingTypeMonthly BillingType = "monthly"
	BillingTypeDaily   BillingType = "daily"
)

var validBillingTypes = []BillingType{
	BillingTypeMonthly,
	BillingTypeDaily,
}

// String implements fmt.Stringer.
func (b BillingType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingType.
func (b BillingType) IsValid() bool {
	for _, candidate := range validBillingTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingType converts raw input into a BillingType.
func ParseBillingType(value string) (BillingType, error) {
	for _, candidate := range validBillingTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing type %q", value)
}
