package syscalls

import (
	"github.com/synthkernel/kerneld/domain"
)

// ProcessCreate implements `process.create`.
type ProcessCreate struct {
	Name     string
	Priority int
	Sandbox  domain.SandboxLevel
}

func (o *ProcessCreate) Resource() string { return "process" }
func (o *ProcessCreate) Action() string   { return "spawn" }
func (o *ProcessCreate) Validate() error {
	if o.Name == "" || rejectsShellMetacharacters(o.Name) {
		return errInvalidPath(o.Name)
	}
	if o.Priority < 0 || o.Priority > 10 {
		return &validationErr{msg: "priority out of range 0..10"}
	}
	return nil
}

func (o *ProcessCreate) Dispatch(ctx *Context) domain.Result {
	pid, err := ctx.Process.CreateProcess(ctx.Pid, o.Name, o.Priority, o.Sandbox)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Pid uint32 `json:"pid"`
	}{Pid: uint32(pid)})
}

// ProcessCreateWithCommand implements `process.create_with_command`, the
// host-spawning variant.
type ProcessCreateWithCommand struct {
	Name     string
	Priority int
	Sandbox  domain.SandboxLevel
	Cfg      domain.ExecConfig
}

func (o *ProcessCreateWithCommand) Resource() string { return "process" }
func (o *ProcessCreateWithCommand) Action() string   { return "spawn" }
func (o *ProcessCreateWithCommand) Validate() error {
	if o.Name == "" || rejectsShellMetacharacters(o.Name) {
		return errInvalidPath(o.Name)
	}
	if o.Cfg.Command == "" || rejectsShellMetacharacters(o.Cfg.Command) {
		return &validationErr{msg: "invalid command: " + o.Cfg.Command}
	}
	for _, a := range o.Cfg.Args {
		if rejectsShellMetacharacters(a) {
			return &validationErr{msg: "invalid argument: " + a}
		}
	}
	return nil
}

func (o *ProcessCreateWithCommand) Dispatch(ctx *Context) domain.Result {
	pid, hostPid, err := ctx.Process.CreateProcessWithCommand(ctx.Pid, o.Name, o.Priority, o.Sandbox, &o.Cfg)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Pid     uint32 `json:"pid"`
		HostPid int    `json:"host_pid"`
	}{Pid: uint32(pid), HostPid: hostPid})
}

// ProcessTerminate implements `process.terminate`.
type ProcessTerminate struct{ Target domain.PID }

func (o *ProcessTerminate) Resource() string { return "process" }
func (o *ProcessTerminate) Action() string   { return "kill" }
func (o *ProcessTerminate) Validate() error  { return nil }

func (o *ProcessTerminate) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Process.TerminateProcess(o.Target); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// ProcessGet implements `process.get`.
type ProcessGet struct{ Target domain.PID }

func (o *ProcessGet) Resource() string { return "process" }
func (o *ProcessGet) Action() string   { return "read" }
func (o *ProcessGet) Validate() error  { return nil }

func (o *ProcessGet) Dispatch(ctx *Context) domain.Result {
	rec, ok := ctx.Process.GetProcess(o.Target)
	if !ok {
		return domain.ErrorResult("no such process: %d", o.Target)
	}
	return jsonSuccess(rec)
}

// ProcessList implements `process.list`.
type ProcessList struct{}

func (o *ProcessList) Resource() string { return "process" }
func (o *ProcessList) Action() string   { return "read" }
func (o *ProcessList) Validate() error  { return nil }

func (o *ProcessList) Dispatch(ctx *Context) domain.Result {
	return jsonSuccess(ctx.Process.ListProcesses())
}

// ProcessSetPriority implements `process.set_priority`.
type ProcessSetPriority struct {
	Target   domain.PID
	Priority int
}

func (o *ProcessSetPriority) Resource() string { return "process" }
func (o *ProcessSetPriority) Action() string   { return "write" }
func (o *ProcessSetPriority) Validate() error {
	if o.Priority < 0 || o.Priority > 10 {
		return &validationErr{msg: "priority out of range 0..10"}
	}
	return nil
}

func (o *ProcessSetPriority) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Process.SetProcessPriority(o.Target, o.Priority); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// ProcessBoostPriority implements `process.boost_priority`.
type ProcessBoostPriority struct{ Target domain.PID }

func (o *ProcessBoostPriority) Resource() string { return "process" }
func (o *ProcessBoostPriority) Action() string   { return "write" }
func (o *ProcessBoostPriority) Validate() error  { return nil }

func (o *ProcessBoostPriority) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Process.BoostProcessPriority(o.Target); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// ProcessLowerPriority implements `process.lower_priority`.
type ProcessLowerPriority struct{ Target domain.PID }

func (o *ProcessLowerPriority) Resource() string { return "process" }
func (o *ProcessLowerPriority) Action() string   { return "write" }
func (o *ProcessLowerPriority) Validate() error  { return nil }

func (o *ProcessLowerPriority) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Process.LowerProcessPriority(o.Target); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// ProcessWait implements `process.wait`. A nil TimeoutMs falls back to the
// executor's blocking-syscall timeout, and blocks forever only when that
// timeout is unbounded.
type ProcessWait struct {
	Target    domain.PID
	TimeoutMs *int64
}

func (o *ProcessWait) Resource() string { return "process" }
func (o *ProcessWait) Action() string   { return "read" }
func (o *ProcessWait) Validate() error {
	if o.TimeoutMs != nil && *o.TimeoutMs < 0 {
		return &validationErr{msg: "negative timeout"}
	}
	return nil
}

func (o *ProcessWait) Dispatch(ctx *Context) domain.Result {
	timeout := o.TimeoutMs
	if timeout == nil && !ctx.BlockingTimeout.Unbounded {
		ms := ctx.BlockingTimeout.Duration.Milliseconds()
		timeout = &ms
	}
	if err := ctx.Process.WaitProcess(o.Target, timeout); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}
