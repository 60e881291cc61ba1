// Package syscalls implements the single polymorphic dispatch point
// and its ~100-operation variant set, grouped into one file per category
// by resource kind.
package syscalls

import (
	"strings"
	"time"

	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/sirupsen/logrus"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/formatter"
	"github.com/synthkernel/kerneld/vfs"
)

// Executable is implemented by every concrete operation struct: it carries
// its own permission classification (embedded domain.Syscall) plus the
// dispatch logic that actually performs the operation against the wired
// collaborators.
type Executable interface {
	domain.Syscall
	Dispatch(ctx *Context) domain.Result
}

// PathAware is implemented by operations that name a filesystem path, so the
// executor can forward it to the sandbox's path ACL check.
type PathAware interface {
	Path() string
}

// ResourceLimited is implemented by operations that create a new FD,
// socket, pipe, queue, or shm segment, naming the resource key the sandbox's
// ResourceLimits understands ("fds", "sockets", "pipes", "queues", "shm").
// The executor consults the caller's current count against its cap before
// dispatch and denies the call outright on exceed.
type ResourceLimited interface {
	LimitResource() string
}

// Context bundles every collaborator a Dispatch method might need. One is
// constructed per Execute call; nothing retains it past the call. Retrier
// and BlockingTimeout let a Dispatch method that can return a would-block
// result wrap its sub-manager call in the timeout engine's retry ladder
// instead of surfacing "would block" as a literal error.
type Context struct {
	Pid     domain.PID
	Process domain.ProcessManagerIface
	Memory  domain.MemoryManagerIface
	Ipc     domain.IpcManagerIface
	Signal  domain.SignalManagerIface
	Sandbox domain.SandboxManagerIface
	Fds     domain.FdTableIface
	Sockets domain.SocketTableIface
	Vfs     *vfs.VFS

	Retrier         *Retrier
	BlockingTimeout TimeoutPolicy
}

// Executor is the single polymorphic execute(pid, syscall) entry point:
// every operation, regardless of resource kind, flows through Execute.
type Executor struct {
	process domain.ProcessManagerIface
	memory  domain.MemoryManagerIface
	ipc     domain.IpcManagerIface
	signal  domain.SignalManagerIface
	sandbox domain.SandboxManagerIface
	fds     domain.FdTableIface
	sockets domain.SocketTableIface
	vfs     *vfs.VFS

	retrier         *Retrier
	blockingTimeout TimeoutPolicy

	registry *iradix.Tree
}

// NewExecutor wires an Executor over its collaborators. sink may be nil (no
// timeout events emitted); blockingTimeout bounds the retry ladder any
// would-block-shaped Dispatch method runs through, zero meaning unbounded.
func NewExecutor(
	process domain.ProcessManagerIface,
	memory domain.MemoryManagerIface,
	ipcMgr domain.IpcManagerIface,
	signal domain.SignalManagerIface,
	sandbox domain.SandboxManagerIface,
	fds domain.FdTableIface,
	sockets domain.SocketTableIface,
	vfsRoot *vfs.VFS,
	sink domain.EventSinkIface,
	blockingTimeout time.Duration,
) *Executor {
	policy := NoTimeout()
	if blockingTimeout > 0 {
		policy = After(blockingTimeout)
	}
	return &Executor{
		process:         process,
		memory:          memory,
		ipc:             ipcMgr,
		signal:          signal,
		sandbox:         sandbox,
		fds:             fds,
		sockets:         sockets,
		vfs:             vfsRoot,
		retrier:         &Retrier{Sink: sink},
		blockingTimeout: policy,
		registry:        buildNameRegistry(),
	}
}

// ClassifyOperationName resolves a wire-format operation name (e.g.
// "fs.read", "pipe.write") to the resource string the sandbox understands,
// via a prefix lookup in an immutable radix tree, the same structure a
// handler-name dispatch index uses. The RPC boundary does not call it: the
// rpc package rejects unknown operation names in its own decodeOp.
func (ex *Executor) ClassifyOperationName(name string) (string, bool) {
	if v, ok := ex.registry.Get([]byte(name)); ok {
		return v.(string), true
	}
	// longest-prefix fallback: "fs.read.extended" still classifies as "fs"
	if _, v, ok := ex.registry.Root().LongestPrefix([]byte(name)); ok {
		return v.(string), true
	}
	return "", false
}

func buildNameRegistry() *iradix.Tree {
	t := iradix.New()
	entries := map[string]string{
		"fs.":        "fs",
		"process.":   "process",
		"sysinfo.":   "sysinfo",
		"pipe.":      "ipc",
		"shm.":       "ipc",
		"mmap.":      "ipc",
		"queue.":     "ipc",
		"scheduler.": "process",
		"time.":      "sysinfo",
		"memory.":    "memory",
		"signal.":    "signal",
		"network.":   "network",
		"fd.":        "fd",
	}
	for prefix, resource := range entries {
		t, _, _ = t.Insert([]byte(prefix), resource)
	}
	return t
}

// Execute is the system's one dispatch entry point. Argument
// validation runs first so a malformed call never reaches the permission
// gate; permission denial always takes precedence over a sub-manager's own
// errors once arguments are well-formed.
func (ex *Executor) Execute(pid domain.PID, sc Executable) domain.Result {
	if err := sc.Validate(); err != nil {
		return domain.ErrorResult("invalid arguments: %v", err)
	}

	path := ""
	if pa, ok := sc.(PathAware); ok {
		path = pa.Path()
	}

	allowed, reason := ex.sandbox.Check(domain.PermissionRequest{
		Pid:      pid,
		Resource: sc.Resource(),
		Action:   sc.Action(),
		Path:     path,
	})
	if !allowed {
		logrus.Debugf("syscall denied: %s resource=%s action=%s: %s",
			formatter.Pid{Value: uint32(pid)}, sc.Resource(), sc.Action(), reason)
		return domain.Denied("%s", reason)
	}

	if rl, ok := sc.(ResourceLimited); ok {
		resource := rl.LimitResource()
		current := ex.currentResourceCount(pid, resource)
		if ok, reason := ex.sandbox.CheckLimit(pid, resource, current); !ok {
			logrus.Debugf("syscall denied: %s resource=%s limit check failed: %s",
				formatter.Pid{Value: uint32(pid)}, resource, reason)
			return domain.Denied("%s", reason)
		}
	}

	ctx := &Context{
		Pid:             pid,
		Process:         ex.process,
		Memory:          ex.memory,
		Ipc:             ex.ipc,
		Signal:          ex.signal,
		Sandbox:         ex.sandbox,
		Fds:             ex.fds,
		Sockets:         ex.sockets,
		Vfs:             ex.vfs,
		Retrier:         ex.retrier,
		BlockingTimeout: ex.blockingTimeout,
	}

	return sc.Dispatch(ctx)
}

// currentResourceCount looks up pid's current count of the named resource
// kind from whichever sub-manager owns it, for the pre-dispatch
// resource-limit check in Execute.
func (ex *Executor) currentResourceCount(pid domain.PID, resource string) int {
	switch resource {
	case "fds":
		return ex.fds.Count(pid)
	case "sockets":
		return ex.sockets.Count(pid)
	case "pipes":
		return ex.ipc.Pipes().Count(pid)
	case "queues":
		return ex.ipc.Queues().Count(pid)
	case "shm":
		return ex.ipc.Shm().Count(pid)
	default:
		return 0
	}
}

// rejectsShellMetacharacters is the argument-validation helper every
// fs/process operation taking a free-form string argument runs through:
// requires shell-metacharacter and null-byte injection to be
// rejected before dispatch, not sanitized.
func rejectsShellMetacharacters(s string) bool {
	if strings.ContainsRune(s, 0) {
		return true
	}
	return strings.ContainsAny(s, ";|&$`\n<>(){}")
}
