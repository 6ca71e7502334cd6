package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"orgaccess/internal/permission"
	"orgaccess/internal/platform/rbac"
	"orgaccess/internal/server/interceptors"
)

// GRPCDeps holds the dependencies of the gRPC server.
type GRPCDeps struct {
	// Guard admits calls to guarded methods. Required.
	Guard *rbac.Guard
	// MethodPermissions adds guarded methods on top of the settings service. Unlisted methods are not guarded.
	MethodPermissions map[string]permission.Permission
}

// NewGRPCServer returns a gRPC server with tracing and the permission interceptor, serving the
// settings service and the standard health service. The returned health server lets callers flip
// serving status.
func NewGRPCServer(deps GRPCDeps) (*grpc.Server, *health.Server) {
	required := SettingsMethodPermissions()
	for method, perm := range deps.MethodPermissions {
		required[method] = perm
	}
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors.PermissionUnary(deps.Guard, required)),
	)
	s.RegisterService(settingsServiceDesc(), settingsServer{})
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}
