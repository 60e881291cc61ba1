// Package pb holds the wire message types and service descriptor for the
// kernel daemon's RPC boundary. Protobuf codegen is explicitly
// out of scope, so these are hand-maintained generated-style structs:
// plain Go types with json tags, carried over the wire by the JSON codec in
// package rpc/codec rather than by protoc-gen-go output, the same separation a
// generated gRPC service keeps between its message types and its
// hand-written business logic.
package pb

// ExecuteSyscallRequest is the generic envelope every syscall rides in:
// Op is the wire-format operation name ("fs.read", "pipe.write", ...) the
// server's operation registry resolves, and Args carries the
// operation-specific arguments as a loosely-typed map the server decodes
// into a concrete syscalls.Executable.
type ExecuteSyscallRequest struct {
	Pid  uint32                 `json:"pid"`
	Op   string                 `json:"op"`
	Args map[string]interface{} `json:"args"`
}

// ExecuteSyscallResponse mirrors domain.Result's three-variant shape.
type ExecuteSyscallResponse struct {
	Kind    int32  `json:"kind"`
	Data    []byte `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// CreateProcessRequest implements the RPC boundary's process-creation call.
type CreateProcessRequest struct {
	Name     string   `json:"name"`
	Priority int32    `json:"priority"`
	Sandbox  int32    `json:"sandbox"`
	Command  string   `json:"command,omitempty"`
	Args     []string `json:"args,omitempty"`
	Env      []string `json:"env,omitempty"`
}

type CreateProcessResponse struct {
	Pid     uint32 `json:"pid"`
	HostPid int32  `json:"host_pid,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UpdateSandboxRequest carries a partial sandbox policy update; nil slices
// leave the corresponding field untouched (mirrors sandbox.Manager.Update's
// nil-means-unchanged contract).
type UpdateSandboxRequest struct {
	Pid          uint32   `json:"pid"`
	Capabilities []string `json:"capabilities,omitempty"`
	AllowedPaths []string `json:"allowed_paths,omitempty"`
	BlockedPaths []string `json:"blocked_paths,omitempty"`
}

type UpdateSandboxResponse struct {
	Error string `json:"error,omitempty"`
}

// ScheduleNextRequest is argument-free; it exists so the method has a
// request type symmetric with the others.
type ScheduleNextRequest struct{}

type ScheduleNextResponse struct {
	Pid      uint32 `json:"pid"`
	HasNext  bool   `json:"has_next"`
}

type GetSchedulerStatsRequest struct{}

type GetSchedulerStatsResponse struct {
	TotalScheduled  uint64 `json:"total_scheduled"`
	ContextSwitches uint64 `json:"context_switches"`
	Preemptions     uint64 `json:"preemptions"`
	ActiveProcesses int32  `json:"active_processes"`
	Policy          string `json:"policy"`
	QuantumMicros   int64  `json:"quantum_micros"`
}

type SetSchedulingPolicyRequest struct {
	Policy string `json:"policy"`
}

type SetSchedulingPolicyResponse struct {
	Error string `json:"error,omitempty"`
}

// KernelEvent mirrors domain.KernelEvent for the StreamEvents server stream.
type KernelEvent struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Pid       uint32 `json:"pid"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type StreamEventsRequest struct {
	// KindFilter, when non-empty, restricts the stream to events whose Kind
	// is in this set; empty means subscribe to everything.
	KindFilter []string `json:"kind_filter,omitempty"`
}
