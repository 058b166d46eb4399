// Package grpcproto the simbook.PhoneBook gRPC service. Messages are
// google.protobuf.Struct, see messages.go for their fields.
package grpcproto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "simbook.PhoneBook"

const (
	MethodLoad           = "Load"
	MethodUpdateByIndex  = "UpdateByIndex"
	MethodUpdateBySearch = "UpdateBySearch"
	MethodAdd            = "Add"
	MethodCached         = "Cached"
	MethodCapacity       = "Capacity"
	MethodReset          = "Reset"
)

// FullMethod "/simbook.PhoneBook/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// PhoneBookServer is the server API for the PhoneBook service.
type PhoneBookServer interface {
	Load(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateByIndex(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateBySearch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Add(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Cached(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Capacity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(PhoneBookServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PhoneBookServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(PhoneBookServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PhoneBook_ServiceDesc is the grpc.ServiceDesc for the PhoneBook service.
var PhoneBook_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PhoneBookServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodLoad, Handler: unaryHandler(MethodLoad, PhoneBookServer.Load)},
		{MethodName: MethodUpdateByIndex, Handler: unaryHandler(MethodUpdateByIndex, PhoneBookServer.UpdateByIndex)},
		{MethodName: MethodUpdateBySearch, Handler: unaryHandler(MethodUpdateBySearch, PhoneBookServer.UpdateBySearch)},
		{MethodName: MethodAdd, Handler: unaryHandler(MethodAdd, PhoneBookServer.Add)},
		{MethodName: MethodCached, Handler: unaryHandler(MethodCached, PhoneBookServer.Cached)},
		{MethodName: MethodCapacity, Handler: unaryHandler(MethodCapacity, PhoneBookServer.Capacity)},
		{MethodName: MethodReset, Handler: unaryHandler(MethodReset, PhoneBookServer.Reset)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "simbook.proto",
}

func RegisterPhoneBookServer(s grpc.ServiceRegistrar, srv PhoneBookServer) {
	s.RegisterService(&PhoneBook_ServiceDesc, srv)
}

// PhoneBookClient is the client API for the PhoneBook service.
type PhoneBookClient interface {
	Load(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdateByIndex(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdateBySearch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Add(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Cached(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Capacity(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Reset(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type phoneBookClient struct {
	cc grpc.ClientConnInterface
}

func NewPhoneBookClient(cc grpc.ClientConnInterface) PhoneBookClient {
	return &phoneBookClient{cc}
}

func (c *phoneBookClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *phoneBookClient) Load(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodLoad, in, opts)
}

func (c *phoneBookClient) UpdateByIndex(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodUpdateByIndex, in, opts)
}

func (c *phoneBookClient) UpdateBySearch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodUpdateBySearch, in, opts)
}

func (c *phoneBookClient) Add(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodAdd, in, opts)
}

func (c *phoneBookClient) Cached(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCached, in, opts)
}

func (c *phoneBookClient) Capacity(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCapacity, in, opts)
}

func (c *phoneBookClient) Reset(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodReset, in, opts)
}
