// Package httpapi is the session-facing HTTP surface: organization listing and switching, the
// active member, role changes, and the permission-guarded settings routes.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"orgaccess/internal/audit"
	"orgaccess/internal/membership/domain"
	"orgaccess/internal/membership/service"
	orgdomain "orgaccess/internal/organization/domain"
	"orgaccess/internal/permission"
	"orgaccess/internal/platform/httputil"
	"orgaccess/internal/platform/rbac"
)

// OrgLister lists the organizations the session user belongs to.
type OrgLister interface {
	GetOrganizations(ctx context.Context) ([]orgdomain.Org, error)
}

// Selection is the active-organization store.
type Selection interface {
	Get() (string, bool)
	Set(orgID string)
	Clear()
}

// MemberSource resolves the session member for an organization.
type MemberSource interface {
	GetActiveMember(ctx context.Context, orgID string) (*domain.Member, error)
}

// Deps holds the collaborators of the HTTP API.
type Deps struct {
	Orgs      OrgLister
	Selection Selection
	Members   MemberSource
	Roles     *service.RoleService
	Guard     *rbac.Guard
	Audit     audit.AuditLogger
	Logger    *logrus.Logger
	// Health, when set, is served at GET /healthz.
	Health http.Handler
	// SaaS enables organization routes; otherwise they report that organizations are unavailable.
	SaaS bool
}

// SettingsRoute binds a settings path to the permission needed to open it. Method names the gRPC
// method serving the same page.
type SettingsRoute struct {
	Path       string
	Method     string
	Permission permission.Permission
}

// SettingsRoutes are the guarded settings pages.
var SettingsRoutes = []SettingsRoute{
	{"/settings/api-keys", "GetAPIKeysPage", permission.Can(permission.ManageAPIKeys)},
	{"/settings/secrets", "GetSecretsPage", permission.Can(permission.ManageSecrets)},
	{"/settings/mcp", "GetMCPPage", permission.Can(permission.ManageMCP)},
	{"/settings/integrations", "GetIntegrationsPage", permission.Can(permission.ManageIntegrations)},
	{"/settings/app", "GetAppPage", permission.Can(permission.ManageApplicationSettings)},
	{"/settings/billing", "GetBillingPage", permission.Can(permission.ViewBilling)},
	{"/settings", "GetLLMSettingsPage", permission.Can(permission.ViewLLMSettings)},
}

// Handlers serves the HTTP API.
type Handlers struct {
	deps Deps
	log  *logrus.Entry
}

// NewHandlers returns Handlers over deps. Audit and Logger may be nil.
func NewHandlers(deps Deps) *Handlers {
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &Handlers{deps: deps, log: deps.Logger.WithField("component", "httpapi")}
}

// RegisterRoutes registers the API and settings routes on r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/organizations", h.listOrganizations).Methods(http.MethodGet)
	r.HandleFunc("/api/session/organization", h.getSelection).Methods(http.MethodGet)
	r.HandleFunc("/api/session/organization", h.switchOrganization).Methods(http.MethodPut)

	r.HandleFunc("/api/organizations/me", h.getMe).Methods(http.MethodGet)
	r.HandleFunc("/api/organizations/me/permissions", h.getMyPermissions).Methods(http.MethodGet)
	r.HandleFunc("/api/organizations/members/{member_id}/can-change-role", h.canChangeRole).Methods(http.MethodGet)
	r.HandleFunc("/api/organizations/members/{member_id}/role", h.changeRole).Methods(http.MethodPatch)

	if h.deps.Health != nil {
		r.Handle("/healthz", h.deps.Health).Methods(http.MethodGet)
	}

	for _, sr := range SettingsRoutes {
		r.Handle(sr.Path, h.RequirePermission(sr.Permission, h.settingsPage(sr))).Methods(http.MethodGet)
	}
}

// NewRouter returns the instrumented HTTP handler for the API.
func NewRouter(deps Deps) http.Handler {
	h := NewHandlers(deps)
	r := mux.NewRouter()
	r.Use(httputil.RecoveryMiddleware(h.deps.Logger), httputil.LoggingMiddleware(h.deps.Logger))
	h.RegisterRoutes(r)
	return otelhttp.NewHandler(r, "orgaccess.http")
}

// RequirePermission serves next only when the guard allows required; otherwise it redirects (302)
// to the guard's redirect target. Nothing of next is rendered on deny.
func (h *Handlers) RequirePermission(required permission.Permission, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := h.deps.Guard.Check(r.Context(), required)
		if !d.Allowed {
			http.Redirect(w, r, d.Redirect, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(withDecision(r.Context(), d)))
	})
}

type contextKey struct{ name string }

var decisionKey = contextKey{"guard_decision"}

func withDecision(ctx context.Context, d rbac.Decision) context.Context {
	return context.WithValue(ctx, decisionKey, d)
}

// DecisionFrom returns the allowing decision stored by RequirePermission.
func DecisionFrom(ctx context.Context) (rbac.Decision, bool) {
	d, ok := ctx.Value(decisionKey).(rbac.Decision)
	return d, ok
}
