// Package grpcrpc carries request envelopes over gRPC.
//
// The service uses the protobuf BytesValue wrapper for both directions, so no
// code generation is needed. The equivalent proto is:
//
//	service Omni { rpc Call(google.protobuf.BytesValue) returns (google.protobuf.BytesValue); }
package grpcrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName    = "omni.rpc.v1.Omni"
	callFullMethod = "/" + serviceName + "/Call"
)

// OmniServer is the server API for the Omni gRPC service.
type OmniServer interface {
	Call(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedOmniServer can be embedded to have forward compatible implementations.
type UnimplementedOmniServer struct{}

func (UnimplementedOmniServer) Call(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Call not implemented")
}

func RegisterOmniServer(s grpc.ServiceRegistrar, srv OmniServer) {
	s.RegisterService(&Omni_ServiceDesc, srv)
}

// OmniClient is the client API for the Omni gRPC service.
type OmniClient interface {
	Call(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type omniClient struct{ cc grpc.ClientConnInterface }

func NewOmniClient(cc grpc.ClientConnInterface) OmniClient { return &omniClient{cc: cc} }

func (c *omniClient) Call(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, callFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Omni_Call_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OmniServer).Call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OmniServer).Call(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Omni_ServiceDesc is the grpc.ServiceDesc for the Omni service.
var Omni_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OmniServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: _Omni_Call_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omni.proto",
}
