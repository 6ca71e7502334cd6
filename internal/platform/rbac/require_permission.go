package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"orgaccess/internal/membership/domain"
	"orgaccess/internal/permission"
)

// RequirePermission runs the guard and converts a denial into a gRPC error.
// Returns the resolved member on success; Unauthenticated when no organization is selected,
// FailedPrecondition when membership cannot be resolved, PermissionDenied otherwise.
func RequirePermission(ctx context.Context, g *Guard, required permission.Permission) (*domain.Member, error) {
	d := g.Check(ctx, required)
	if d.Allowed {
		return d.Member, nil
	}
	return nil, DecisionError(d)
}

// DecisionError maps a denied Decision to a gRPC status error. Returns nil for allowed decisions.
func DecisionError(d Decision) error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonNoOrganization:
		return status.Error(codes.Unauthenticated, "organization context required")
	case ReasonResolutionFailed:
		return status.Error(codes.FailedPrecondition, "unable to determine your role in this organization")
	case ReasonNotMember:
		return status.Error(codes.PermissionDenied, "not a member of this organization")
	}
	return status.Error(codes.PermissionDenied, "insufficient permissions")
}
