package rbac

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"orgaccess/internal/membership/domain"
	"orgaccess/internal/permission"
)

// staticOrgs implements OrgSelection for tests.
type staticOrgs string

func (s staticOrgs) Get() (string, bool) { return string(s), s != "" }

// mockMemberResolver implements MemberResolver for tests.
type mockMemberResolver struct {
	members map[string]*domain.Member
	err     error
	calls   int
}

func (m *mockMemberResolver) GetActiveMember(ctx context.Context, orgID string) (*domain.Member, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.members[orgID], nil
}

func memberIn(orgID string, role domain.Role) *mockMemberResolver {
	return &mockMemberResolver{members: map[string]*domain.Member{
		orgID: {ID: "user-1", Email: "u@example.com", Role: role, Status: domain.MemberStatusActive},
	}}
}

func TestGuard_AllowsWhenRoleGrantsPermission(t *testing.T) {
	g := NewGuard(staticOrgs("org-1"), memberIn("org-1", domain.RoleMember))

	d := g.Check(context.Background(), permission.Can(permission.ManageAPIKeys))
	if !d.Allowed {
		t.Fatalf("decision = %+v, want allowed", d)
	}
	if d.Member == nil || d.Member.ID != "user-1" || d.OrgID != "org-1" {
		t.Errorf("decision = %+v, want member user-1 in org-1", d)
	}
}

func TestGuard_DeniesMissingPermission(t *testing.T) {
	g := NewGuard(staticOrgs("org-1"), memberIn("org-1", domain.RoleMember), WithRedirect("/settings"))

	d := g.Check(context.Background(), permission.Can(permission.ViewBilling))
	if d.Allowed {
		t.Fatal("member should not view billing")
	}
	if d.Reason != ReasonMissingPermission || d.Redirect != "/settings" {
		t.Errorf("decision = %+v", d)
	}
}

func TestGuard_DeniesWithoutOrganization(t *testing.T) {
	resolver := memberIn("org-1", domain.RoleOwner)
	g := NewGuard(staticOrgs(""), resolver)

	d := g.Check(context.Background(), permission.Can(permission.ManageSecrets))
	if d.Allowed || d.Reason != ReasonNoOrganization {
		t.Errorf("decision = %+v, want no_organization deny", d)
	}
	if d.Redirect != "/" {
		t.Errorf("Redirect = %q, want default /", d.Redirect)
	}
	if resolver.calls != 0 {
		t.Errorf("resolver calls = %d, want 0", resolver.calls)
	}
}

func TestGuard_DeniesOnResolutionError(t *testing.T) {
	boom := errors.New("current organization not found")
	g := NewGuard(staticOrgs("org-1"), &mockMemberResolver{err: boom})

	d := g.Check(context.Background(), permission.Can(permission.ManageSecrets))
	if d.Allowed || d.Reason != ReasonResolutionFailed {
		t.Fatalf("decision = %+v, want resolution_failed deny", d)
	}
	if !errors.Is(d.Err, boom) {
		t.Errorf("Err = %v, want %v", d.Err, boom)
	}
}

func TestGuard_DeniesAbsentMember(t *testing.T) {
	g := NewGuard(staticOrgs("org-2"), memberIn("org-1", domain.RoleOwner))
	d := g.Check(context.Background(), permission.Can(permission.ManageSecrets))
	if d.Allowed || d.Reason != ReasonNotMember {
		t.Errorf("decision = %+v, want not_member deny", d)
	}
}

func TestGuard_Bypass(t *testing.T) {
	resolver := &mockMemberResolver{err: errors.New("unreachable")}
	g := NewGuard(staticOrgs(""), resolver, WithBypass(true))
	if d := g.Check(context.Background(), permission.Can(permission.DeleteOrganization)); !d.Allowed {
		t.Errorf("bypassed guard should allow, got %+v", d)
	}
	if resolver.calls != 0 {
		t.Errorf("resolver calls = %d, want 0", resolver.calls)
	}
}

func TestRequirePermission_StatusCodes(t *testing.T) {
	testCases := []struct {
		name     string
		orgs     staticOrgs
		resolver *mockMemberResolver
		perm     permission.Permission
		wantCode codes.Code
	}{
		{"no org", "", memberIn("org-1", domain.RoleOwner), permission.Can(permission.ManageSecrets), codes.Unauthenticated},
		{"resolution failed", "org-1", &mockMemberResolver{err: errors.New("boom")}, permission.Can(permission.ManageSecrets), codes.FailedPrecondition},
		{"not member", "org-2", memberIn("org-1", domain.RoleOwner), permission.Can(permission.ManageSecrets), codes.PermissionDenied},
		{"missing permission", "org-1", memberIn("org-1", domain.RoleAdmin), permission.Can(permission.DeleteOrganization), codes.PermissionDenied},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := RequirePermission(context.Background(), NewGuard(tc.orgs, tc.resolver), tc.perm)
			if err == nil {
				t.Fatal("expected error")
			}
			st, ok := status.FromError(err)
			if !ok {
				t.Fatalf("error is not a gRPC status: %v", err)
			}
			if st.Code() != tc.wantCode {
				t.Errorf("status code = %v, want %v", st.Code(), tc.wantCode)
			}
		})
	}
}

func TestRequirePermission_Success(t *testing.T) {
	g := NewGuard(staticOrgs("org-1"), memberIn("org-1", domain.RoleOwner))
	m, err := RequirePermission(context.Background(), g, permission.Can(permission.DeleteOrganization))
	if err != nil {
		t.Fatalf("RequirePermission: %v", err)
	}
	if m.Role != domain.RoleOwner {
		t.Errorf("role = %q, want owner", m.Role)
	}
	if DecisionError(Decision{Allowed: true}) != nil {
		t.Error("DecisionError(allowed) should be nil")
	}
}
