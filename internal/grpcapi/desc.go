package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Messages are
// protobuf well-known types so no generated code is needed:
//
//	RecordScan(Struct) returns (Struct)        {reader_id, card_tag} -> scan response
//	Reset(Empty) returns (Empty)
//	GetSnapshot(Empty) returns (ListValue)     [{time, card_tag, direction}]
//	Watch(Empty) returns (stream ListValue)    current snapshot, then every change
const ServiceName = "rollcall.v1.Attendance"

const (
	methodRecordScan  = "/" + ServiceName + "/RecordScan"
	methodReset       = "/" + ServiceName + "/Reset"
	methodGetSnapshot = "/" + ServiceName + "/GetSnapshot"
	methodWatch       = "/" + ServiceName + "/Watch"
)

// AttendanceServer is the server API for the Attendance service.
type AttendanceServer interface {
	RecordScan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	GetSnapshot(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Watch(*emptypb.Empty, grpc.ServerStreamingServer[structpb.ListValue]) error
}

var AttendanceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AttendanceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RecordScan", Handler: recordScanHandler},
		{MethodName: "Reset", Handler: resetHandler},
		{MethodName: "GetSnapshot", Handler: getSnapshotHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "rollcall/v1/attendance.proto",
}

func RegisterAttendanceServer(s grpc.ServiceRegistrar, srv AttendanceServer) {
	s.RegisterService(&AttendanceServiceDesc, srv)
}

func recordScanHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AttendanceServer).RecordScan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRecordScan}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AttendanceServer).RecordScan(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func resetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AttendanceServer).Reset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodReset}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AttendanceServer).Reset(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getSnapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AttendanceServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetSnapshot}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AttendanceServer).GetSnapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(AttendanceServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, structpb.ListValue]{ServerStream: stream})
}
