package rbac

import (
	"orgaccess/internal/membership/domain"
	"orgaccess/internal/permission"
)

// CanChangeRole reports whether actor may change the role of the member identified by targetID,
// whose current role is targetRole. The decision is based on the target's current role.
//
// Admins are refused admin and owner targets before the permission table is consulted, even though
// the table grants admins change_user_role:admin.
func CanChangeRole(actor *domain.Member, targetID string, targetRole domain.Role) bool {
	if actor == nil {
		return false
	}
	if targetID == actor.ID {
		return false
	}
	switch actor.Role {
	case domain.RoleMember:
		return false
	case domain.RoleAdmin:
		if targetRole == domain.RoleAdmin || targetRole == domain.RoleOwner {
			return false
		}
		return permission.HasPermission(domain.RoleAdmin, permission.ChangeRoleTo(targetRole))
	case domain.RoleOwner:
		if targetRole == domain.RoleOwner {
			return false
		}
		return permission.HasPermission(domain.RoleOwner, permission.ChangeRoleTo(targetRole))
	}
	return false
}

// AvailableRolesToAssign returns, in the fixed order owner, admin, member, the roles for which perms
// contains the matching change_user_role permission.
func AvailableRolesToAssign(perms []permission.Permission) []domain.Role {
	granted := make(map[permission.Permission]bool, len(perms))
	for _, p := range perms {
		granted[p] = true
	}
	out := make([]domain.Role, 0, len(domain.Roles))
	for _, r := range domain.Roles {
		if granted[permission.ChangeRoleTo(r)] {
			out = append(out, r)
		}
	}
	return out
}
