package enums

import "fmt"

// AdminRole scopes an admin token. Owners manage a single tenant; platform
// operators manage every tenant.
type AdminRole string

const (
	AdminRoleOwner    AdminRole = "owner"
	AdminRolePlatform AdminRole = "platform"
)

var validAdminRoles = []AdminRole{
	AdminRoleOwner,
	AdminRolePlatform,
}

// String implements fmt.Stringer.
func (r AdminRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known AdminRole.
func (r AdminRole) IsValid() bool {
	for _, candidate := range validAdminRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAdminRole converts raw input into an AdminRole.
func ParseAdminRole(value string) (AdminRole, error) {
	for _, candidate := range validAdminRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid admin role %q", value)
}
