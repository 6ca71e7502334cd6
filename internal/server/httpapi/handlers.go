package httpapi

import (
	"errors"
	"net/http"

	"orgaccess/internal/audit"
	"orgaccess/internal/membership/domain"
	"orgaccess/internal/membership/resolver"
	"orgaccess/internal/membership/service"
	"orgaccess/internal/organization/client"
	orgdomain "orgaccess/internal/organization/domain"
	"orgaccess/internal/permission"
	"orgaccess/internal/platform/httputil"
	"orgaccess/internal/platform/rbac"
)

const msgUnresolvedRole = "unable to determine your role in this organization"

// SelectionResponse is the body of GET and PUT /api/session/organization.
type SelectionResponse struct {
	OrgID *string `json:"org_id"`
}

// SwitchOrganizationRequest selects OrgID, or clears the selection when OrgID is null or empty.
type SwitchOrganizationRequest struct {
	OrgID *string `json:"org_id"`
}

// MeResponse is the body of GET /api/organizations/me. Member is null when no organization applies.
type MeResponse struct {
	OrgID  *string        `json:"org_id"`
	Member *domain.Member `json:"member"`
}

// PermissionsResponse is the body of GET /api/organizations/me/permissions.
type PermissionsResponse struct {
	Role            *domain.Role            `json:"role"`
	Permissions     []permission.Permission `json:"permissions"`
	AssignableRoles []domain.Role           `json:"assignable_roles"`
}

// CanChangeRoleResponse is the body of GET /api/organizations/members/{member_id}/can-change-role.
type CanChangeRoleResponse struct {
	Allowed bool `json:"allowed"`
}

// ChangeRoleRequest is the body of PATCH /api/organizations/members/{member_id}/role.
type ChangeRoleRequest struct {
	CurrentRole domain.Role `json:"current_role"`
	Role        domain.Role `json:"role"`
}

// SettingsPageResponse is returned by an admitted settings route.
type SettingsPageResponse struct {
	Path       string                `json:"path"`
	Permission permission.Permission `json:"permission"`
	OrgID      string                `json:"org_id,omitempty"`
	Role       domain.Role           `json:"role,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// activeOrg returns the selected organization. Outside SaaS mode there is never one.
func (h *Handlers) activeOrg() (string, bool) {
	if !h.deps.SaaS {
		return "", false
	}
	return h.deps.Selection.Get()
}

// listOrganizations handles GET /api/organizations
func (h *Handlers) listOrganizations(w http.ResponseWriter, r *http.Request) {
	if !h.deps.SaaS {
		_ = httputil.WriteJSON(w, http.StatusOK, []orgdomain.Org{})
		return
	}
	orgs, err := h.deps.Orgs.GetOrganizations(r.Context())
	if err != nil {
		h.log.WithError(err).Warn("list organizations failed")
		httputil.WriteBadGateway(w, "failed to list organizations")
		return
	}
	if orgs == nil {
		orgs = []orgdomain.Org{}
	}
	_ = httputil.WriteJSON(w, http.StatusOK, orgs)
}

// getSelection handles GET /api/session/organization
func (h *Handlers) getSelection(w http.ResponseWriter, r *http.Request) {
	orgID, _ := h.activeOrg()
	_ = httputil.WriteJSON(w, http.StatusOK, SelectionResponse{OrgID: optional(orgID)})
}

// switchOrganization handles PUT /api/session/organization. A non-empty org id must be one of the
// user's organizations.
func (h *Handlers) switchOrganization(w http.ResponseWriter, r *http.Request) {
	if !h.deps.SaaS {
		httputil.WriteNotFoundError(w, "organizations are not available")
		return
	}
	var req SwitchOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	ctx := r.Context()

	if req.OrgID == nil || *req.OrgID == "" {
		h.deps.Selection.Clear()
		h.deps.Audit.LogEvent(ctx, audit.SentinelOrgID, "", audit.ActionOrgSwitched, "organization", "cleared")
		_ = httputil.WriteJSON(w, http.StatusOK, SelectionResponse{})
		return
	}

	orgID := *req.OrgID
	orgs, err := h.deps.Orgs.GetOrganizations(ctx)
	if err != nil {
		h.log.WithError(err).Warn("list organizations failed")
		httputil.WriteBadGateway(w, "failed to list organizations")
		return
	}
	if !orgdomain.Contains(orgs, orgID) {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}
	h.deps.Selection.Set(orgID)

	// Resolving here warms the membership cache for the new org and names the actor in the audit log.
	var userID string
	if m, err := h.deps.Members.GetActiveMember(ctx, orgID); err == nil && m != nil {
		userID = m.ID
	}
	h.deps.Audit.LogEvent(ctx, orgID, userID, audit.ActionOrgSwitched, "organization:"+orgID, "")
	_ = httputil.WriteJSON(w, http.StatusOK, SelectionResponse{OrgID: &orgID})
}

// getMe handles GET /api/organizations/me
func (h *Handlers) getMe(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.activeOrg()
	if !ok {
		_ = httputil.WriteJSON(w, http.StatusOK, MeResponse{})
		return
	}
	m, err := h.deps.Members.GetActiveMember(r.Context(), orgID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, MeResponse{OrgID: &orgID, Member: m})
}

// getMyPermissions handles GET /api/organizations/me/permissions
func (h *Handlers) getMyPermissions(w http.ResponseWriter, r *http.Request) {
	resp := PermissionsResponse{Permissions: []permission.Permission{}, AssignableRoles: []domain.Role{}}
	orgID, ok := h.activeOrg()
	if !ok {
		_ = httputil.WriteJSON(w, http.StatusOK, resp)
		return
	}
	m, err := h.deps.Members.GetActiveMember(r.Context(), orgID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if m != nil {
		ev := permission.For(m.Role)
		role := ev.Role()
		resp.Role = &role
		resp.Permissions = ev.Permissions()
		resp.AssignableRoles = rbac.AvailableRolesToAssign(resp.Permissions)
	}
	_ = httputil.WriteJSON(w, http.StatusOK, resp)
}

// canChangeRole handles GET /api/organizations/members/{member_id}/can-change-role?current_role=...
func (h *Handlers) canChangeRole(w http.ResponseWriter, r *http.Request) {
	memberID := httputil.PathString(r, "member_id")
	current, err := domain.ParseRole(r.URL.Query().Get("current_role"))
	if err != nil {
		httputil.WriteBadRequest(w, "current_role: "+err.Error())
		return
	}
	allowed, err := h.deps.Roles.CanChange(r.Context(), memberID, current)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, CanChangeRoleResponse{Allowed: allowed})
}

// changeRole handles PATCH /api/organizations/members/{member_id}/role
func (h *Handlers) changeRole(w http.ResponseWriter, r *http.Request) {
	var req ChangeRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.CurrentRole.Valid() || !req.Role.Valid() {
		httputil.WriteBadRequest(w, "current_role and role are required")
		return
	}
	err := h.deps.Roles.ChangeRole(r.Context(), service.ChangeRoleRequest{
		MemberID:    httputil.PathString(r, "member_id"),
		CurrentRole: req.CurrentRole,
		NewRole:     req.Role,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handlers) settingsPage(sr SettingsRoute) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := SettingsPageResponse{Path: sr.Path, Permission: sr.Permission}
		if d, ok := DecisionFrom(r.Context()); ok && d.Member != nil {
			resp.OrgID = d.OrgID
			resp.Role = d.Member.Role
		}
		_ = httputil.WriteJSON(w, http.StatusOK, resp)
	})
}

// writeError maps membership and upstream failures to HTTP responses.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, service.ErrNoOrganization):
		httputil.WriteConflict(w, "no organization selected")
	case errors.Is(err, service.ErrRoleChangeForbidden), errors.Is(err, service.ErrRoleNotAssignable):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, resolver.ErrConsistency):
		httputil.WriteBadGateway(w, msgUnresolvedRole)
	case errors.As(err, &apiErr):
		h.log.WithError(err).WithField("status", apiErr.StatusCode).Warn("organization service error")
		httputil.WriteBadGateway(w, "organization service error")
	default:
		// Everything else came from reaching the organization service.
		h.log.WithError(err).Error("request failed")
		httputil.WriteBadGateway(w, "organization service unavailable")
	}
}
