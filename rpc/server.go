// Package rpc implements the kernel daemon's gRPC-facing boundary: decoding
// wire requests, invoking the syscall executor or the process/sandbox
// managers directly. Syscall results travel in the response's
// Kind/Data/Message/Reason fields; only a request whose operation cannot be
// decoded fails with status.Error(codes.InvalidArgument).
package rpc

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/rpc/pb"
	"github.com/synthkernel/kerneld/syscalls"
)

// ringCapableResources names the resource prefixes whose operations declare
// an IOSize() and so can steer the adaptive dispatcher's classification:
// bulk filesystem, network, and pipe I/O.
var ringCapableResources = []string{"fs", "network", "ipc"}

// Server implements pb.KernelServer, embedding references to every
// collaborator the RPC surface touches.
type Server struct {
	executor   *syscalls.Executor
	dispatcher *syscalls.Dispatcher
	process    domain.ProcessManagerIface
	sandbox    domain.SandboxManagerIface
	sink       domain.EventSinkIface
}

func NewServer(
	executor *syscalls.Executor,
	process domain.ProcessManagerIface,
	sandbox domain.SandboxManagerIface,
	sink domain.EventSinkIface,
) *Server {
	return &Server{
		executor:   executor,
		dispatcher: syscalls.NewDispatcher(executor, ringCapableResources),
		process:    process,
		sandbox:    sandbox,
		sink:       sink,
	}
}

func (s *Server) ExecuteSyscall(ctx context.Context, req *pb.ExecuteSyscallRequest) (*pb.ExecuteSyscallResponse, error) {
	sc, err := decodeOp(req.Op, req.Args)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res := s.dispatcher.Submit(domain.PID(req.Pid), sc)
	return &pb.ExecuteSyscallResponse{
		Kind:    int32(res.Kind),
		Data:    res.Data,
		Message: res.Message,
		Reason:  res.Reason,
	}, nil
}

func (s *Server) CreateProcess(ctx context.Context, req *pb.CreateProcessRequest) (*pb.CreateProcessResponse, error) {
	level := domain.ParseSandboxLevel(req.Sandbox)

	if req.Command == "" {
		pid, err := s.process.CreateProcess(0, req.Name, int(req.Priority), level)
		if err != nil {
			return &pb.CreateProcessResponse{Error: err.Error()}, nil
		}
		return &pb.CreateProcessResponse{Pid: uint32(pid)}, nil
	}

	cfg := &domain.ExecConfig{Command: req.Command, Args: req.Args, Env: req.Env}
	pid, hostPid, err := s.process.CreateProcessWithCommand(0, req.Name, int(req.Priority), level, cfg)
	if err != nil {
		return &pb.CreateProcessResponse{Error: err.Error()}, nil
	}
	return &pb.CreateProcessResponse{Pid: uint32(pid), HostPid: int32(hostPid)}, nil
}

func (s *Server) UpdateSandbox(ctx context.Context, req *pb.UpdateSandboxRequest) (*pb.UpdateSandboxResponse, error) {
	var caps []domain.Capability
	if req.Capabilities != nil {
		caps = make([]domain.Capability, 0, len(req.Capabilities))
		for _, token := range req.Capabilities {
			c, ok := domain.ParseCapability(token)
			if !ok {
				return &pb.UpdateSandboxResponse{Error: "unknown capability: " + token}, nil
			}
			caps = append(caps, c)
		}
	}

	if err := s.sandbox.Update(domain.PID(req.Pid), caps, req.AllowedPaths, req.BlockedPaths, nil); err != nil {
		return &pb.UpdateSandboxResponse{Error: err.Error()}, nil
	}
	return &pb.UpdateSandboxResponse{}, nil
}

func (s *Server) ScheduleNext(ctx context.Context, req *pb.ScheduleNextRequest) (*pb.ScheduleNextResponse, error) {
	pid, ok := s.process.Scheduler().Schedule()
	return &pb.ScheduleNextResponse{Pid: uint32(pid), HasNext: ok}, nil
}

func (s *Server) GetSchedulerStats(ctx context.Context, req *pb.GetSchedulerStatsRequest) (*pb.GetSchedulerStatsResponse, error) {
	st := s.process.Scheduler().Stats()
	return &pb.GetSchedulerStatsResponse{
		TotalScheduled:  st.TotalScheduled,
		ContextSwitches: st.ContextSwitches,
		Preemptions:     st.Preemptions,
		ActiveProcesses: int32(st.ActiveProcesses),
		Policy:          st.Policy.String(),
		QuantumMicros:   st.QuantumMicros,
	}, nil
}

func (s *Server) SetSchedulingPolicy(ctx context.Context, req *pb.SetSchedulingPolicyRequest) (*pb.SetSchedulingPolicyResponse, error) {
	policy, ok := domain.ParseSchedPolicy(req.Policy)
	if !ok {
		return &pb.SetSchedulingPolicyResponse{Error: "unknown policy: " + req.Policy}, nil
	}
	s.process.Scheduler().SetPolicy(policy)
	return &pb.SetSchedulingPolicyResponse{}, nil
}

// StreamEvents subscribes to the shared sink and forwards every matching
// event until the client disconnects or the stream's context is canceled.
func (s *Server) StreamEvents(req *pb.StreamEventsRequest, stream pb.Kernel_StreamEventsServer) error {
	ch, cancel := s.sink.Subscribe()
	defer cancel()

	filter := make(map[string]bool, len(req.KindFilter))
	for _, k := range req.KindFilter {
		filter[k] = true
	}

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			if len(filter) > 0 && !filter[evt.Kind] {
				continue
			}
			wire := &pb.KernelEvent{
				ID:        evt.ID,
				Kind:      evt.Kind,
				Pid:       uint32(evt.Pid),
				Message:   evt.Message,
				Timestamp: evt.Timestamp,
			}
			if err := stream.Send(wire); err != nil {
				logrus.Debugf("stream_events: send failed: %v", err)
				return err
			}
		}
	}
}

var _ pb.KernelServer = (*Server)(nil)
