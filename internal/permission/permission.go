// Package permission holds the static role → permission table and the queries evaluated against it.
package permission

import (
	"fmt"
	"strings"

	"orgaccess/internal/membership/domain"
)

// Kind discriminates plain capabilities from parameterized role-change permissions.
type Kind uint8

const (
	KindCapability Kind = iota + 1
	KindRoleChange
)

// Capability is a plain capability token.
type Capability string

const (
	ManageSecrets             Capability = "manage_secrets"
	ManageMCP                 Capability = "manage_mcp"
	ManageIntegrations        Capability = "manage_integrations"
	ManageApplicationSettings Capability = "manage_application_settings"
	ManageAPIKeys             Capability = "manage_api_keys"
	ViewLLMSettings           Capability = "view_llm_settings"
	EditLLMSettings           Capability = "edit_llm_settings"
	ViewBilling               Capability = "view_billing"
	AddCredits                Capability = "add_credits"
	InviteUserToOrganization  Capability = "invite_user_to_organization"
	ChangeOrganizationName    Capability = "change_organization_name"
	DeleteOrganization        Capability = "delete_organization"
)

var capabilities = []Capability{
	ManageSecrets, ManageMCP, ManageIntegrations, ManageApplicationSettings, ManageAPIKeys,
	ViewLLMSettings, EditLLMSettings, ViewBilling, AddCredits, InviteUserToOrganization,
	ChangeOrganizationName, DeleteOrganization,
}

const roleChangePrefix = "change_user_role:"

// Permission is a capability or a "may set a member's role to TargetRole" grant.
// The zero value is not a valid permission. Permissions are comparable and usable as map keys.
type Permission struct {
	Kind       Kind
	Capability Capability
	TargetRole domain.Role
}

// Can returns the permission for a plain capability.
func Can(c Capability) Permission {
	return Permission{Kind: KindCapability, Capability: c}
}

// ChangeRoleTo returns the permission to assign role r to another member.
func ChangeRoleTo(r domain.Role) Permission {
	return Permission{Kind: KindRoleChange, TargetRole: r}
}

// String renders the wire token, e.g. "manage_secrets" or "change_user_role:admin".
func (p Permission) String() string {
	switch p.Kind {
	case KindCapability:
		return string(p.Capability)
	case KindRoleChange:
		return roleChangePrefix + string(p.TargetRole)
	}
	return ""
}

// MarshalText implements encoding.TextMarshaler.
func (p Permission) MarshalText() ([]byte, error) {
	s := p.String()
	if s == "" {
		return nil, fmt.Errorf("permission: cannot marshal invalid permission")
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permission) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Parse converts a wire token into a Permission. Unknown capabilities and roles are rejected.
func Parse(s string) (Permission, error) {
	if rest, ok := strings.CutPrefix(s, roleChangePrefix); ok {
		r, err := domain.ParseRole(rest)
		if err != nil {
			return Permission{}, fmt.Errorf("permission %q: %w", s, err)
		}
		return ChangeRoleTo(r), nil
	}
	for _, c := range capabilities {
		if string(c) == s {
			return Can(c), nil
		}
	}
	return Permission{}, fmt.Errorf("unknown permission %q", s)
}

// MustParse is like Parse but panics on error. Intended for static route tables.
func MustParse(s string) Permission {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}
