package interceptors

import (
	"context"

	"orgaccess/internal/membership/domain"
)

type contextKey struct{ name string }

var (
	orgIDKey  = contextKey{"org_id"}
	memberKey = contextKey{"member"}
)

// WithMember returns a context carrying the org id and the member admitted by the permission guard.
// Handlers read these via GetOrgID and GetMember.
func WithMember(ctx context.Context, orgID string, m *domain.Member) context.Context {
	ctx = context.WithValue(ctx, orgIDKey, orgID)
	ctx = context.WithValue(ctx, memberKey, m)
	return ctx
}

// GetOrgID returns the org_id from context and true if set; otherwise "", false.
func GetOrgID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(orgIDKey).(string)
	return v, ok
}

// GetMember returns the guarded member from context and true if set; otherwise nil, false.
func GetMember(ctx context.Context) (*domain.Member, bool) {
	v, ok := ctx.Value(memberKey).(*domain.Member)
	return v, ok && v != nil
}
