package permission

import (
	"fmt"
	"slices"

	"orgaccess/internal/membership/domain"
)

var memberPerms = []Permission{
	Can(ManageSecrets),
	Can(ManageMCP),
	Can(ManageIntegrations),
	Can(ManageApplicationSettings),
	Can(ManageAPIKeys),
	Can(ViewLLMSettings),
}

var adminPerms = append(slices.Clone(memberPerms),
	Can(EditLLMSettings),
	Can(ViewBilling),
	Can(AddCredits),
	Can(InviteUserToOrganization),
	ChangeRoleTo(domain.RoleMember),
	ChangeRoleTo(domain.RoleAdmin),
)

var ownerPerms = append(slices.Clone(adminPerms),
	Can(ChangeOrganizationName),
	Can(DeleteOrganization),
	ChangeRoleTo(domain.RoleOwner),
)

var rolePermissions = map[domain.Role][]Permission{
	domain.RoleOwner:  ownerPerms,
	domain.RoleAdmin:  adminPerms,
	domain.RoleMember: memberPerms,
}

// PermissionsOf returns the ordered permission list granted to role. The returned slice is a copy.
// It panics for roles outside owner, admin and member; callers must normalize with domain.ParseRole first.
func PermissionsOf(role domain.Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		panic(fmt.Sprintf("permission: no permission table for role %q", role))
	}
	return slices.Clone(perms)
}
