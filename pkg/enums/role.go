package enums

import "fmt"

// Role is the acting principal's role as asserted by the identity service.
type Role string

const (
	RoleCustomer        Role = "customer"
	RoleStaff           Role = "staff"
	RoleAdmin           Role = "admin"
	RoleDeliveryPartner Role = "delivery_partner"
	RoleSystem          Role = "system"
)

var validRoles = []Role{
	RoleCustomer,
	RoleStaff,
	RoleAdmin,
	RoleDeliveryPartner,
	RoleSystem,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role can operate the fulfillment back office.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin || r == RoleSystem
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
