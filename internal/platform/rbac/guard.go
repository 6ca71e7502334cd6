package rbac

import (
	"context"

	"github.com/sirupsen/logrus"

	"orgaccess/internal/membership/domain"
	"orgaccess/internal/permission"
)

// OrgSelection reads the active organization.
type OrgSelection interface {
	Get() (orgID string, ok bool)
}

// MemberResolver returns the session member for an organization, or nil when none applies.
type MemberResolver interface {
	GetActiveMember(ctx context.Context, orgID string) (*domain.Member, error)
}

// DenyReason says why a Decision denied.
type DenyReason string

const (
	ReasonNoOrganization    DenyReason = "no_organization"
	ReasonNotMember         DenyReason = "not_member"
	ReasonResolutionFailed  DenyReason = "resolution_failed"
	ReasonMissingPermission DenyReason = "missing_permission"
)

// Decision is the result of a guard check. On deny, Redirect is where the caller should send the user.
// Member is set whenever resolution succeeded; Err is set for ReasonResolutionFailed.
type Decision struct {
	Allowed  bool
	Redirect string
	Reason   DenyReason
	OrgID    string
	Member   *domain.Member
	Err      error
}

// Guard gates access on a permission held by the session member in the active organization.
type Guard struct {
	orgs     OrgSelection
	members  MemberResolver
	redirect string
	bypass   bool
	log      *logrus.Entry
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithRedirect sets the deny redirect target. Defaults to "/".
func WithRedirect(path string) GuardOption {
	return func(g *Guard) {
		if path != "" {
			g.redirect = path
		}
	}
}

// WithBypass makes every check allow. Used when the app runs without organizations.
func WithBypass(bypass bool) GuardOption {
	return func(g *Guard) { g.bypass = bypass }
}

// WithGuardLogger sets the logger.
func WithGuardLogger(l *logrus.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.log = l.WithField("component", "guard")
		}
	}
}

// NewGuard returns a guard over the active-org selection and the member resolver.
func NewGuard(orgs OrgSelection, members MemberResolver, opts ...GuardOption) *Guard {
	g := &Guard{
		orgs:     orgs,
		members:  members,
		redirect: "/",
		log:      logrus.StandardLogger().WithField("component", "guard"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check resolves the active member and allows only if its role grants required.
// Any failure to resolve a member denies.
func (g *Guard) Check(ctx context.Context, required permission.Permission) Decision {
	if g.bypass {
		return Decision{Allowed: true}
	}
	orgID, ok := g.orgs.Get()
	if !ok {
		return g.deny(Decision{Reason: ReasonNoOrganization}, required)
	}
	m, err := g.members.GetActiveMember(ctx, orgID)
	if err != nil {
		return g.deny(Decision{Reason: ReasonResolutionFailed, OrgID: orgID, Err: err}, required)
	}
	if m == nil || !m.Role.Valid() {
		return g.deny(Decision{Reason: ReasonNotMember, OrgID: orgID}, required)
	}
	if !permission.HasPermission(m.Role, required) {
		return g.deny(Decision{Reason: ReasonMissingPermission, OrgID: orgID, Member: m}, required)
	}
	return Decision{Allowed: true, OrgID: orgID, Member: m}
}

func (g *Guard) deny(d Decision, required permission.Permission) Decision {
	d.Redirect = g.redirect
	entry := g.log.WithFields(logrus.Fields{
		"org_id":     d.OrgID,
		"permission": required.String(),
		"reason":     d.Reason,
	})
	if d.Err != nil {
		entry = entry.WithError(d.Err)
	}
	entry.Info("permission guard denied")
	return d
}
