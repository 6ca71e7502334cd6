// Package service implements the role-change workflow for organization members.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"orgaccess/internal/audit"
	"orgaccess/internal/membership/domain"
	"orgaccess/internal/permission"
	"orgaccess/internal/platform/rbac"
)

var (
	// ErrNoOrganization is returned when no organization is selected or membership does not apply.
	ErrNoOrganization = errors.New("membership: no organization selected")
	// ErrRoleChangeForbidden is returned when the acting member may not change the target's role.
	ErrRoleChangeForbidden = errors.New("membership: not allowed to change this member's role")
	// ErrRoleNotAssignable is returned when the requested role is outside the actor's assignable roles.
	ErrRoleNotAssignable = errors.New("membership: requested role cannot be assigned")
)

// OrgSelection reads the active organization.
type OrgSelection interface {
	Get() (string, bool)
}

// ActiveMembers resolves and refreshes the session member.
type ActiveMembers interface {
	GetActiveMember(ctx context.Context, orgID string) (*domain.Member, error)
	Refresh(ctx context.Context, orgID string) (*domain.Member, error)
}

// RoleUpdater performs the role mutation upstream.
type RoleUpdater interface {
	UpdateMemberRole(ctx context.Context, orgID, memberID string, role domain.Role) error
}

// ChangeRoleRequest asks to move MemberID from CurrentRole to NewRole in the active organization.
type ChangeRoleRequest struct {
	MemberID    string
	CurrentRole domain.Role
	NewRole     domain.Role
}

// RoleService gates and performs member role changes.
type RoleService struct {
	orgs    OrgSelection
	members ActiveMembers
	updater RoleUpdater
	audit   audit.AuditLogger
	log     *logrus.Entry
}

// NewRoleService returns a RoleService. auditLogger may be nil.
func NewRoleService(orgs OrgSelection, members ActiveMembers, updater RoleUpdater, auditLogger audit.AuditLogger, l *logrus.Logger) *RoleService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &RoleService{
		orgs:    orgs,
		members: members,
		updater: updater,
		audit:   auditLogger,
		log:     l.WithField("component", "role_service"),
	}
}

// actor returns the active org id and the session member in it.
func (s *RoleService) actor(ctx context.Context) (string, *domain.Member, error) {
	orgID, ok := s.orgs.Get()
	if !ok {
		return "", nil, ErrNoOrganization
	}
	m, err := s.members.GetActiveMember(ctx, orgID)
	if err != nil {
		return orgID, nil, err
	}
	if m == nil {
		return orgID, nil, ErrNoOrganization
	}
	return orgID, m, nil
}

// AssignableRoles returns the roles the session member may assign, in owner, admin, member order.
func (s *RoleService) AssignableRoles(ctx context.Context) ([]domain.Role, error) {
	_, m, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return rbac.AvailableRolesToAssign(permission.PermissionsOf(m.Role)), nil
}

// CanChange reports whether the session member may change memberID's role given its current role.
func (s *RoleService) CanChange(ctx context.Context, memberID string, currentRole domain.Role) (bool, error) {
	_, m, err := s.actor(ctx)
	if err != nil {
		return false, err
	}
	return rbac.CanChangeRole(m, memberID, currentRole), nil
}

// ChangeRole authorizes req, performs the mutation, and then overwrites the session member's cache
// entry for the organization. Unauthorized requests never reach the organization service.
func (s *RoleService) ChangeRole(ctx context.Context, req ChangeRoleRequest) error {
	if req.MemberID == "" {
		return errors.New("membership: member id is required")
	}
	if !req.CurrentRole.Valid() || !req.NewRole.Valid() {
		return fmt.Errorf("membership: invalid role change %q -> %q", req.CurrentRole, req.NewRole)
	}
	orgID, actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	resource := "member:" + req.MemberID
	change := string(req.CurrentRole) + "->" + string(req.NewRole)

	if !rbac.CanChangeRole(actor, req.MemberID, req.CurrentRole) {
		s.audit.LogEvent(ctx, orgID, actor.ID, audit.ActionRoleChangeDenied, resource, change)
		return ErrRoleChangeForbidden
	}
	assignable := rbac.AvailableRolesToAssign(permission.PermissionsOf(actor.Role))
	if !slices.Contains(assignable, req.NewRole) {
		s.audit.LogEvent(ctx, orgID, actor.ID, audit.ActionRoleChangeDenied, resource, change)
		return ErrRoleNotAssignable
	}

	if err := s.updater.UpdateMemberRole(ctx, orgID, req.MemberID, req.NewRole); err != nil {
		return fmt.Errorf("membership: update role: %w", err)
	}
	s.audit.LogEvent(ctx, orgID, actor.ID, audit.ActionRoleChanged, resource, change)

	if _, err := s.members.Refresh(ctx, orgID); err != nil {
		// The mutation already succeeded; the stale entry stays until the next overwrite.
		s.log.WithField("org_id", orgID).WithError(err).Warn("failed to refresh member after role change")
	}
	return nil
}
