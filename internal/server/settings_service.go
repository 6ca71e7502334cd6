package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"orgaccess/internal/permission"
	"orgaccess/internal/server/httpapi"
	"orgaccess/internal/server/interceptors"
)

// SettingsServiceName is the gRPC service serving the guarded settings pages.
const SettingsServiceName = "orgaccess.settings.v1.SettingsService"

// SettingsMethodPermissions maps each settings method's full name to the permission guarding it.
func SettingsMethodPermissions() map[string]permission.Permission {
	out := make(map[string]permission.Permission, len(httpapi.SettingsRoutes))
	for _, sr := range httpapi.SettingsRoutes {
		out[settingsFullMethod(sr)] = sr.Permission
	}
	return out
}

func settingsFullMethod(sr httpapi.SettingsRoute) string {
	return "/" + SettingsServiceName + "/" + sr.Method
}

type settingsPager interface {
	page(ctx context.Context, sr httpapi.SettingsRoute) (*structpb.Struct, error)
}

type settingsServer struct{}

// page describes the settings page for the member admitted by the permission interceptor.
func (settingsServer) page(ctx context.Context, sr httpapi.SettingsRoute) (*structpb.Struct, error) {
	fields := map[string]any{
		"path":       sr.Path,
		"permission": sr.Permission.String(),
	}
	if orgID, ok := interceptors.GetOrgID(ctx); ok && orgID != "" {
		fields["org_id"] = orgID
	}
	if m, ok := interceptors.GetMember(ctx); ok {
		fields["role"] = string(m.Role)
	}
	return structpb.NewStruct(fields)
}

func settingsServiceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: SettingsServiceName,
		HandlerType: (*settingsPager)(nil),
		Metadata:    "orgaccess/settings/v1/settings.proto",
	}
	for _, sr := range httpapi.SettingsRoutes {
		desc.Methods = append(desc.Methods, settingsMethod(sr))
	}
	return desc
}

func settingsMethod(sr httpapi.SettingsRoute) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: sr.Method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, _ any) (any, error) {
				return srv.(settingsPager).page(ctx, sr)
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: settingsFullMethod(sr)}
			return interceptor(ctx, in, info, handler)
		},
	}
}
