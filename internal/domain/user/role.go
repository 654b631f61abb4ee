package user

import (
	"errors"
	"strings"
)

// Role is the actor role carried in JWT claims.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (lowercases+trims) and validates a role string.
func ParseRole(in string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(in)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether the role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RolePassenger, RoleDriver, RoleAdmin:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}
