package permission

import (
	"orgaccess/internal/membership/domain"
)

// Evaluator answers permission queries for a single role.
type Evaluator struct {
	role  domain.Role
	perms map[Permission]struct{}
}

// For returns an Evaluator bound to role. It panics for unknown roles, like PermissionsOf.
func For(role domain.Role) *Evaluator {
	perms := PermissionsOf(role)
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return &Evaluator{role: role, perms: set}
}

// Role returns the role the evaluator was built for.
func (e *Evaluator) Role() domain.Role { return e.role }

// Permissions returns the role's permissions in table order.
func (e *Evaluator) Permissions() []Permission { return PermissionsOf(e.role) }

// HasPermission reports whether the role grants p.
func (e *Evaluator) HasPermission(p Permission) bool {
	_, ok := e.perms[p]
	return ok
}

// HasAnyPermission returns the elements of perms the role grants, in input order.
// The result is empty (never nil) when nothing matches.
func (e *Evaluator) HasAnyPermission(perms []Permission) []Permission {
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if e.HasPermission(p) {
			out = append(out, p)
		}
	}
	return out
}

// HasAllPermissions reports whether the role grants every element of perms. Empty input is true.
func (e *Evaluator) HasAllPermissions(perms []Permission) bool {
	for _, p := range perms {
		if !e.HasPermission(p) {
			return false
		}
	}
	return true
}

// HasPermission reports whether role grants p.
func HasPermission(role domain.Role, p Permission) bool {
	return For(role).HasPermission(p)
}

// HasAnyPermission returns the subset of perms granted to role, preserving input order.
func HasAnyPermission(role domain.Role, perms []Permission) []Permission {
	return For(role).HasAnyPermission(perms)
}

// HasAllPermissions reports whether role grants all of perms.
func HasAllPermissions(role domain.Role, perms []Permission) bool {
	return For(role).HasAllPermissions(perms)
}
