// Package process implements process lifecycle management and the three
// scheduling policies.
package process

import (
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/formatter"
	"github.com/synthkernel/kerneld/internal/idpool"
	"github.com/synthkernel/kerneld/internal/kerrors"
	"github.com/synthkernel/kerneld/ipc"
)

type procEntry struct {
	record domain.ProcessRecord
	cmd    *exec.Cmd
}

// Manager implements domain.ProcessManagerIface. Termination cascades in a
// fixed order through every collaborator so no subsystem retains state for
// a pid that no longer exists.
type Manager struct {
	mu    sync.RWMutex
	procs map[domain.PID]*procEntry
	ids   *idpool.Pool

	sched   *Scheduler
	mem     domain.MemoryManagerIface
	ipcMgr  domain.IpcManagerIface
	sig     domain.SignalManagerIface
	fds     domain.FdTableIface
	socks   domain.SocketTableIface
	sandbox domain.SandboxManagerIface
	sink    domain.EventSinkIface

	termWait *ipc.WaitQueue[domain.PID]
}

// Setup wires the manager's collaborators, following the
// dependency-injection-by-method convention used across this daemon's services.
func (m *Manager) Setup(
	sched *Scheduler,
	mem domain.MemoryManagerIface,
	ipcMgr domain.IpcManagerIface,
	sig domain.SignalManagerIface,
	fds domain.FdTableIface,
	socks domain.SocketTableIface,
	sandbox domain.SandboxManagerIface,
	sink domain.EventSinkIface,
) {
	m.sched = sched
	m.mem = mem
	m.ipcMgr = ipcMgr
	m.sig = sig
	m.fds = fds
	m.socks = socks
	m.sandbox = sandbox
	m.sink = sink
}

func NewManager() *Manager {
	return &Manager{
		procs:    make(map[domain.PID]*procEntry),
		ids:      idpool.New(1),
		termWait: ipc.NewWaitQueue[domain.PID](),
	}
}

func (m *Manager) CreateProcess(parent domain.PID, name string, priority int, level domain.SandboxLevel) (domain.PID, error) {
	return m.createProcess(parent, name, priority, level, nil)
}

func (m *Manager) CreateProcessWithCommand(parent domain.PID, name string, priority int, level domain.SandboxLevel, cfg *domain.ExecConfig) (domain.PID, int, error) {
	pid, err := m.createProcess(parent, name, priority, level, cfg)
	if err != nil {
		return 0, 0, err
	}
	m.mu.RLock()
	e := m.procs[pid]
	m.mu.RUnlock()
	hostPid := 0
	if e.cmd != nil && e.cmd.Process != nil {
		hostPid = e.cmd.Process.Pid
	}
	return pid, hostPid, nil
}

func (m *Manager) createProcess(parent domain.PID, name string, priority int, level domain.SandboxLevel, cfg *domain.ExecConfig) (domain.PID, error) {
	m.mu.Lock()
	pid := domain.PID(m.ids.Acquire())
	m.mu.Unlock()

	if m.sandbox != nil && !m.sandbox.RecordSpawn(parent) {
		m.mu.Lock()
		m.ids.Release(uint64(pid))
		m.mu.Unlock()
		return 0, kerrors.Permission("process limit exceeded")
	}

	if err := m.sig.InitializeProcess(pid); err != nil {
		m.rollbackCreate(pid, parent)
		return 0, err
	}
	if m.sandbox != nil {
		m.sandbox.Create(pid, level)
	}

	e := &procEntry{record: domain.ProcessRecord{
		Pid:       pid,
		ParentPid: parent,
		Name:      name,
		State:     domain.ProcReady,
		Priority:  priority,
		Created:   time.Now(),
	}}

	if cfg != nil && cfg.Command != "" {
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Env = cfg.Env
		if err := cmd.Start(); err != nil {
			m.rollbackCreate(pid, parent)
			return 0, kerrors.Internal("spawn host process: %v", err)
		}
		e.cmd = cmd
		e.record.HostPid = cmd.Process.Pid
		go func() {
			_ = cmd.Wait()
		}()
	}

	m.applyPriorityLimits(pid, priority)

	m.mu.Lock()
	m.procs[pid] = e
	m.mu.Unlock()

	m.sched.Add(pid, priority)

	logrus.Debugf("process created: %s name=%q priority=%d", formatter.Pid{Value: uint32(pid)}, name, priority)
	m.emit(pid, "process.created", name)

	return pid, nil
}

// applyPriorityLimits derives the host-process resource caps from the
// priority bucket and pushes them into the
// sandbox policy. Only the bucket-governed fields are overridden; FD/socket/
// connection caps stay whatever the sandbox level template set.
func (m *Manager) applyPriorityLimits(pid domain.PID, priority int) {
	if m.sandbox == nil {
		return
	}
	limits, ok := m.sandbox.Limits(pid)
	if !ok {
		return
	}
	switch domain.Band(priority) {
	case domain.BandLow:
		limits.MaxMemoryBytes = 128 << 20
		limits.CPUShares = 50
		limits.MaxProcesses = 5
	case domain.BandHigh:
		limits.MaxMemoryBytes = 2 << 30
		limits.CPUShares = 200
		limits.MaxProcesses = 50
	default:
		limits.MaxMemoryBytes = 512 << 20
		limits.CPUShares = 100
		// normal band keeps whatever process cap the sandbox level set.
	}
	if err := m.sandbox.Update(pid, nil, nil, nil, &limits); err != nil {
		logrus.Debugf("apply priority limits: %s: %v", formatter.Pid{Value: uint32(pid)}, err)
	}
}

func (m *Manager) rollbackCreate(pid, parent domain.PID) {
	m.sig.CleanupProcess(pid)
	if m.sandbox != nil {
		m.sandbox.Remove(pid)
		m.sandbox.RecordTermination(parent)
	}
	m.mu.Lock()
	m.ids.Release(uint64(pid))
	m.mu.Unlock()
}

// TerminateProcess cascades cleanup through every subsystem that might hold
// state for pid, in the order the RPC boundary's terminate_process needs:
// scheduler first (so nothing re-schedules it), then IPC objects, memory,
// signals, descriptors, sandbox policy, and finally the pid itself.
func (m *Manager) TerminateProcess(pid domain.PID) error {
	m.mu.Lock()
	e, ok := m.procs[pid]
	if !ok {
		m.mu.Unlock()
		return kerrors.NotFound("process %d not found", pid)
	}
	e.record.State = domain.ProcTerminated
	delete(m.procs, pid)
	m.mu.Unlock()

	m.sched.Remove(pid)
	if m.ipcMgr != nil {
		m.ipcMgr.DropProcessObjects(pid)
	}
	if m.mem != nil {
		m.mem.FreeProcessMemory(pid)
	}
	m.sig.CleanupProcess(pid)
	if m.fds != nil {
		m.fds.CloseAll(pid)
	}
	if m.socks != nil {
		m.socks.CloseAll(pid)
	}
	if m.sandbox != nil {
		m.sandbox.Remove(pid)
		m.sandbox.RecordTermination(e.record.ParentPid)
	}
	if e.cmd != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}

	m.ids.Release(uint64(pid))
	m.emit(pid, "process.terminated", e.record.Name)
	m.termWait.NotifyAll(pid)
	m.termWait.Forget(pid)

	return nil
}

func (m *Manager) GetProcess(pid domain.PID) (domain.ProcessRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.procs[pid]
	if !ok {
		return domain.ProcessRecord{}, false
	}
	return e.record, true
}

func (m *Manager) ListProcesses() []domain.ProcessRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ProcessRecord, 0, len(m.procs))
	for _, e := range m.procs {
		out = append(out, e.record)
	}
	return out
}

func (m *Manager) SetProcessPriority(pid domain.PID, priority int) error {
	m.mu.Lock()
	e, ok := m.procs[pid]
	if !ok {
		m.mu.Unlock()
		return kerrors.NotFound("process %d not found", pid)
	}
	e.record.Priority = priority
	m.mu.Unlock()

	m.sched.SetPriority(pid, priority)
	m.applyPriorityLimits(pid, priority)
	return nil
}

func (m *Manager) BoostProcessPriority(pid domain.PID) error {
	m.mu.Lock()
	e, ok := m.procs[pid]
	if !ok {
		m.mu.Unlock()
		return kerrors.NotFound("process %d not found", pid)
	}
	next := m.sched.BoostStep(e.record.Priority)
	e.record.Priority = next
	m.mu.Unlock()

	m.sched.SetPriority(pid, next)
	m.applyPriorityLimits(pid, next)
	return nil
}

func (m *Manager) LowerProcessPriority(pid domain.PID) error {
	m.mu.Lock()
	e, ok := m.procs[pid]
	if !ok {
		m.mu.Unlock()
		return kerrors.NotFound("process %d not found", pid)
	}
	next := m.sched.LowerStep(e.record.Priority)
	e.record.Priority = next
	m.mu.Unlock()

	m.sched.SetPriority(pid, next)
	m.applyPriorityLimits(pid, next)
	return nil
}

// WaitProcess blocks until pid terminates or timeoutMs elapses. A nil
// timeout blocks until termination with no deadline, since the caller
// always holds an independent RPC deadline upstream.
func (m *Manager) WaitProcess(pid domain.PID, timeoutMs *int64) error {
	m.mu.RLock()
	_, alive := m.procs[pid]
	m.mu.RUnlock()
	if !alive {
		return nil
	}

	ch := m.termWait.Register(pid)

	m.mu.RLock()
	_, alive = m.procs[pid]
	m.mu.RUnlock()
	if !alive {
		return nil
	}

	if timeoutMs == nil {
		<-ch
		return nil
	}

	timer := time.NewTimer(time.Duration(*timeoutMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return &kerrors.TimeoutError{Label: "wait_process", MillisAge: *timeoutMs}
	}
}

func (m *Manager) Scheduler() domain.SchedulerIface { return m.sched }

func (m *Manager) emit(pid domain.PID, kind, message string) {
	if m.sink == nil {
		return
	}
	m.sink.Emit(domain.KernelEvent{Kind: kind, Pid: pid, Message: message})
}

var _ domain.ProcessManagerIface = (*Manager)(nil)
