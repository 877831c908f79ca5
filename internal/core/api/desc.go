package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cibrule.v1.RuleService"

// Full method names, as seen by interceptors.
const (
	CompileMethod = "/" + ServiceName + "/Compile"
	ExportMethod  = "/" + ServiceName + "/Export"
)

// RuleServiceServer is the server API for the rule service.
type RuleServiceServer interface {
	Compile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Export(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RuleServiceDesc describes the rule service for grpc.Server registration.
var RuleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RuleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compile", Handler: compileHandler},
		{MethodName: "Export", Handler: exportHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cibrule/v1/rule_service.proto",
}

// RegisterRuleServiceServer registers srv on s.
func RegisterRuleServiceServer(s grpc.ServiceRegistrar, srv RuleServiceServer) {
	s.RegisterService(&RuleServiceDesc, srv)
}

func compileHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(srv, ctx, dec, interceptor, CompileMethod, RuleServiceServer.Compile)
}

func exportHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return unary(srv, ctx, dec, interceptor, ExportMethod, RuleServiceServer.Export)
}

type method func(RuleServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor, fullMethod string, call method) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return call(srv.(RuleServiceServer), ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return call(srv.(RuleServiceServer), ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RuleServiceClient is the client API for the rule service.
type RuleServiceClient interface {
	Compile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Export(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type ruleServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRuleServiceClient creates a client over cc.
func NewRuleServiceClient(cc grpc.ClientConnInterface) RuleServiceClient {
	return &ruleServiceClient{cc: cc}
}

func (c *ruleServiceClient) Compile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CompileMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ruleServiceClient) Export(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ExportMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
