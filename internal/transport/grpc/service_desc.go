package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "pawbook.v1.BookingService"

type BookingServiceServer interface {
	ResolveAvailability(context.Context, *ResolveAvailabilityRequest) (*ResolveAvailabilityResponse, error)
	CreateBooking(context.Context, *CreateBookingRequest) (*CreateBookingResponse, error)
	TransitionBooking(context.Context, *TransitionBookingRequest) (*TransitionBookingResponse, error)
	GetBooking(context.Context, *GetBookingRequest) (*GetBookingResponse, error)
}

var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ResolveAvailability",
			Handler:    unaryHandler("ResolveAvailability", BookingServiceServer.ResolveAvailability),
		},
		{
			MethodName: "CreateBooking",
			Handler:    unaryHandler("CreateBooking", BookingServiceServer.CreateBooking),
		},
		{
			MethodName: "TransitionBooking",
			Handler:    unaryHandler("TransitionBooking", BookingServiceServer.TransitionBooking),
		},
		{
			MethodName: "GetBooking",
			Handler:    unaryHandler("GetBooking", BookingServiceServer.GetBooking),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pawbook/v1/booking.proto",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler[Req, Resp any](method string, call func(BookingServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BookingClient calls BookingService over a connection using the JSON codec.
type BookingClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingClient(cc grpc.ClientConnInterface) *BookingClient {
	return &BookingClient{cc: cc}
}

func (c *BookingClient) ResolveAvailability(ctx context.Context, in *ResolveAvailabilityRequest, opts ...grpc.CallOption) (*ResolveAvailabilityResponse, error) {
	out := new(ResolveAvailabilityResponse)
	return out, c.invoke(ctx, "ResolveAvailability", in, out, opts)
}

func (c *BookingClient) CreateBooking(ctx context.Context, in *CreateBookingRequest, opts ...grpc.CallOption) (*CreateBookingResponse, error) {
	out := new(CreateBookingResponse)
	return out, c.invoke(ctx, "CreateBooking", in, out, opts)
}

func (c *BookingClient) TransitionBooking(ctx context.Context, in *TransitionBookingRequest, opts ...grpc.CallOption) (*TransitionBookingResponse, error) {
	out := new(TransitionBookingResponse)
	return out, c.invoke(ctx, "TransitionBooking", in, out, opts)
}

func (c *BookingClient) GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*GetBookingResponse, error) {
	out := new(GetBookingResponse)
	return out, c.invoke(ctx, "GetBooking", in, out, opts)
}

func (c *BookingClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}
