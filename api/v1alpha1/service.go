package v1alpha1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "inference.GRPCInferenceService"

const (
	serverLiveMethod    = "/" + ServiceName + "/ServerLive"
	serverReadyMethod   = "/" + ServiceName + "/ServerReady"
	modelReadyMethod    = "/" + ServiceName + "/ModelReady"
	modelMetadataMethod = "/" + ServiceName + "/ModelMetadata"
	modelInferMethod    = "/" + ServiceName + "/ModelInfer"
)

type GRPCInferenceServiceClient interface {
	ServerLive(ctx context.Context, in *ServerLiveRequest, opts ...grpc.CallOption) (*ServerLiveResponse, error)
	ServerReady(ctx context.Context, in *ServerReadyRequest, opts ...grpc.CallOption) (*ServerReadyResponse, error)
	ModelReady(ctx context.Context, in *ModelReadyRequest, opts ...grpc.CallOption) (*ModelReadyResponse, error)
	ModelMetadata(ctx context.Context, in *ModelMetadataRequest, opts ...grpc.CallOption) (*ModelMetadataResponse, error)
	ModelInfer(ctx context.Context, in *ModelInferRequest, opts ...grpc.CallOption) (*ModelInferResponse, error)
}

type grpcInferenceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewGRPCInferenceServiceClient returns a client that sends every call with the JSON codec.
func NewGRPCInferenceServiceClient(cc grpc.ClientConnInterface) GRPCInferenceServiceClient {
	return &grpcInferenceServiceClient{cc}
}

func (c *grpcInferenceServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *grpcInferenceServiceClient) ServerLive(ctx context.Context, in *ServerLiveRequest, opts ...grpc.CallOption) (*ServerLiveResponse, error) {
	out := new(ServerLiveResponse)
	if err := c.invoke(ctx, serverLiveMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *grpcInferenceServiceClient) ServerReady(ctx context.Context, in *ServerReadyRequest, opts ...grpc.CallOption) (*ServerReadyResponse, error) {
	out := new(ServerReadyResponse)
	if err := c.invoke(ctx, serverReadyMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *grpcInferenceServiceClient) ModelReady(ctx context.Context, in *ModelReadyRequest, opts ...grpc.CallOption) (*ModelReadyResponse, error) {
	out := new(ModelReadyResponse)
	if err := c.invoke(ctx, modelReadyMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *grpcInferenceServiceClient) ModelMetadata(ctx context.Context, in *ModelMetadataRequest, opts ...grpc.CallOption) (*ModelMetadataResponse, error) {
	out := new(ModelMetadataResponse)
	if err := c.invoke(ctx, modelMetadataMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *grpcInferenceServiceClient) ModelInfer(ctx context.Context, in *ModelInferRequest, opts ...grpc.CallOption) (*ModelInferResponse, error) {
	out := new(ModelInferResponse)
	if err := c.invoke(ctx, modelInferMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

type GRPCInferenceServiceServer interface {
	ServerLive(context.Context, *ServerLiveRequest) (*ServerLiveResponse, error)
	ServerReady(context.Context, *ServerReadyRequest) (*ServerReadyResponse, error)
	ModelReady(context.Context, *ModelReadyRequest) (*ModelReadyResponse, error)
	ModelMetadata(context.Context, *ModelMetadataRequest) (*ModelMetadataResponse, error)
	ModelInfer(context.Context, *ModelInferRequest) (*ModelInferResponse, error)
}

// UnimplementedGRPCInferenceServiceServer can be embedded to answer Unimplemented for missing methods.
type UnimplementedGRPCInferenceServiceServer struct{}

func (UnimplementedGRPCInferenceServiceServer) ServerLive(context.Context, *ServerLiveRequest) (*ServerLiveResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ServerLive not implemented")
}

func (UnimplementedGRPCInferenceServiceServer) ServerReady(context.Context, *ServerReadyRequest) (*ServerReadyResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ServerReady not implemented")
}

func (UnimplementedGRPCInferenceServiceServer) ModelReady(context.Context, *ModelReadyRequest) (*ModelReadyResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ModelReady not implemented")
}

func (UnimplementedGRPCInferenceServiceServer) ModelMetadata(context.Context, *ModelMetadataRequest) (*ModelMetadataResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ModelMetadata not implemented")
}

func (UnimplementedGRPCInferenceServiceServer) ModelInfer(context.Context, *ModelInferRequest) (*ModelInferResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ModelInfer not implemented")
}

func RegisterGRPCInferenceServiceServer(s grpc.ServiceRegistrar, srv GRPCInferenceServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unaryHandler adapts a typed method to a grpc.MethodDesc handler.
func unaryHandler[Req any, Resp any](method string, call func(GRPCInferenceServiceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GRPCInferenceServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(GRPCInferenceServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GRPCInferenceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ServerLive", Handler: unaryHandler(serverLiveMethod, GRPCInferenceServiceServer.ServerLive)},
		{MethodName: "ServerReady", Handler: unaryHandler(serverReadyMethod, GRPCInferenceServiceServer.ServerReady)},
		{MethodName: "ModelReady", Handler: unaryHandler(modelReadyMethod, GRPCInferenceServiceServer.ModelReady)},
		{MethodName: "ModelMetadata", Handler: unaryHandler(modelMetadataMethod, GRPCInferenceServiceServer.ModelMetadata)},
		{MethodName: "ModelInfer", Handler: unaryHandler(modelInferMethod, GRPCInferenceServiceServer.ModelInfer)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inference/grpc_service.json",
}
