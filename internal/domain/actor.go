package domain

import (
	"fmt"
	"strings"
)

// Role distinguishes the two parties of a negotiation.
type Role string

const (
	RoleStudent  Role = "student"
	RoleProvider Role = "provider"
)

// ParseRole accepts a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleProvider:
		return RoleProvider, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is an authenticated caller. Identity itself is resolved outside the
// engine; the engine only sees the id and role.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (a Actor) String() string {
	return fmt.Sprintf("%s:%s", a.Role, a.ID)
}
