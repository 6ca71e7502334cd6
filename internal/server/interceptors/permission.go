package interceptors

import (
	"context"

	"google.golang.org/grpc"

	"orgaccess/internal/permission"
	"orgaccess/internal/platform/rbac"
)

// PermissionUnary returns a unary server interceptor that runs the guard for methods listed in
// required (full method name → permission). Unlisted methods pass through untouched.
// Admitted calls see the org id and member via GetOrgID and GetMember.
func PermissionUnary(guard *rbac.Guard, required map[string]permission.Permission) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		perm, ok := required[info.FullMethod]
		if !ok {
			return handler(ctx, req)
		}
		d := guard.Check(ctx, perm)
		if !d.Allowed {
			return nil, rbac.DecisionError(d)
		}
		return handler(WithMember(ctx, d.OrgID, d.Member), req)
	}
}
