package pb

import (
	"context"

	"google.golang.org/grpc"
)

// KernelServer is the service interface kernel_grpc.pb.go would generate
// from the RPC boundary's seven methods: six unary calls plus
// one server-streaming call for event delivery.
type KernelServer interface {
	ExecuteSyscall(context.Context, *ExecuteSyscallRequest) (*ExecuteSyscallResponse, error)
	CreateProcess(context.Context, *CreateProcessRequest) (*CreateProcessResponse, error)
	UpdateSandbox(context.Context, *UpdateSandboxRequest) (*UpdateSandboxResponse, error)
	ScheduleNext(context.Context, *ScheduleNextRequest) (*ScheduleNextResponse, error)
	GetSchedulerStats(context.Context, *GetSchedulerStatsRequest) (*GetSchedulerStatsResponse, error)
	SetSchedulingPolicy(context.Context, *SetSchedulingPolicyRequest) (*SetSchedulingPolicyResponse, error)
	StreamEvents(*StreamEventsRequest, Kernel_StreamEventsServer) error
}

// Kernel_StreamEventsServer is the server-side handle for the StreamEvents
// server-streaming RPC.
type Kernel_StreamEventsServer interface {
	Send(*KernelEvent) error
	grpc.ServerStream
}

type kernelStreamEventsServer struct {
	grpc.ServerStream
}

func (s *kernelStreamEventsServer) Send(evt *KernelEvent) error {
	return s.ServerStream.SendMsg(evt)
}

func _Kernel_ExecuteSyscall_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ExecuteSyscallRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KernelServer).ExecuteSyscall(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/kernel.Kernel/ExecuteSyscall"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KernelServer).ExecuteSyscall(ctx, req.(*ExecuteSyscallRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kernel_CreateProcess_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CreateProcessRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KernelServer).CreateProcess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/kernel.Kernel/CreateProcess"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KernelServer).CreateProcess(ctx, req.(*CreateProcessRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kernel_UpdateSandbox_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UpdateSandboxRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KernelServer).UpdateSandbox(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/kernel.Kernel/UpdateSandbox"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KernelServer).UpdateSandbox(ctx, req.(*UpdateSandboxRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kernel_ScheduleNext_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ScheduleNextRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KernelServer).ScheduleNext(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/kernel.Kernel/ScheduleNext"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KernelServer).ScheduleNext(ctx, req.(*ScheduleNextRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kernel_GetSchedulerStats_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetSchedulerStatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KernelServer).GetSchedulerStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/kernel.Kernel/GetSchedulerStats"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KernelServer).GetSchedulerStats(ctx, req.(*GetSchedulerStatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kernel_SetSchedulingPolicy_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SetSchedulingPolicyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KernelServer).SetSchedulingPolicy(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/kernel.Kernel/SetSchedulingPolicy"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KernelServer).SetSchedulingPolicy(ctx, req.(*SetSchedulingPolicyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Kernel_StreamEvents_Handler(srv interface{}, stream grpc.ServerStream) error {
	in := new(StreamEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(KernelServer).StreamEvents(in, &kernelStreamEventsServer{stream})
}

// KernelServiceDesc is the protoc-gen-go-grpc-shaped service descriptor
// grpc.NewServer().RegisterService registers the kernel implementation
// against.
var KernelServiceDesc = grpc.ServiceDesc{
	ServiceName: "kernel.Kernel",
	HandlerType: (*KernelServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExecuteSyscall", Handler: _Kernel_ExecuteSyscall_Handler},
		{MethodName: "CreateProcess", Handler: _Kernel_CreateProcess_Handler},
		{MethodName: "UpdateSandbox", Handler: _Kernel_UpdateSandbox_Handler},
		{MethodName: "ScheduleNext", Handler: _Kernel_ScheduleNext_Handler},
		{MethodName: "GetSchedulerStats", Handler: _Kernel_GetSchedulerStats_Handler},
		{MethodName: "SetSchedulingPolicy", Handler: _Kernel_SetSchedulingPolicy_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamEvents",
			Handler:       _Kernel_StreamEvents_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "kernel.proto",
}
