package types

import (
	"fmt"
	"strings"
)

// Role partitions the identity directory. The set is closed: every
// dispatch on Role must handle all three values and reject anything else
// at parse time.
type Role string

const (
	RoleDriver     Role = "driver"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// Roles lists every valid role, in directory order.
func Roles() []Role {
	return []Role{RoleDriver, RoleTechnician, RoleAdmin}
}

// Valid reports whether the role is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDriver, RoleTechnician, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

func (r Role) String() string {
	return string(r)
}
