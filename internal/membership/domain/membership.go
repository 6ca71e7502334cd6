package domain

import (
	"fmt"
)

// Member is the current session's membership record in one organization.
type Member struct {
	ID     string       `json:"id"`
	Email  string       `json:"email"`
	Role   Role         `json:"role"`
	Status MemberStatus `json:"status"`
}

type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "active"
	MemberStatusInvited MemberStatus = "invited"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"

	// RoleUser is the name some upstream payloads use for the member tier.
	RoleUser Role = "user"
)

// Roles lists the closed role set in assignment order (most privileged first).
var Roles = []Role{RoleOwner, RoleAdmin, RoleMember}

// Valid reports whether r is one of owner, admin or member. RoleUser is not valid until normalized.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// ParseRole normalizes s into the closed role set. "user" maps to RoleMember.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOwner, RoleAdmin, RoleMember:
		return Role(s), nil
	case RoleUser:
		return RoleMember, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// UnmarshalText normalizes roles decoded from JSON so RoleUser never leaks past the wire.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
