package enums

import "fmt"

// UserType places a user in the reseller hierarchy.
type UserType string

const (
	UserTypeOperator    UserType = "operator"
	UserTypeSubOperator UserType = "sub_operator"
	UserTypeReseller    UserType = "reseller"
	UserTypeCustomer    UserType = "customer"
)

var validUserTypes = []UserType{
	UserTypeOperator,
	UserTypeSubOperator,
	UserTypeReseller,
	UserTypeCustomer,
}

// String implements fmt.Stringer.
func (u UserType) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UserType.
func (u UserType) IsValid() bool {
	for _, candidate := range validUserTypes {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUserType converts raw input into a UserType.
func ParseUserType(value string) (UserType, error) {
	for _, candidate := range validUserTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user type %q", value)
}
