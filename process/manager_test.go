package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/fdtable"
	"github.com/synthkernel/kerneld/ipc"
	"github.com/synthkernel/kerneld/memory"
	"github.com/synthkernel/kerneld/sandbox"
	"github.com/synthkernel/kerneld/signal"
)

// noopHandle satisfies domain.FileHandle without touching the filesystem,
// standing in for an opened file in tests that only care about fd bookkeeping.
type noopHandle struct{}

func (noopHandle) Read(p []byte) (int, error)                  { return 0, nil }
func (noopHandle) Write(p []byte) (int, error)                 { return len(p), nil }
func (noopHandle) Seek(offset int64, whence int) (int64, error) { return 0, nil }
func (noopHandle) Close() error                                 { return nil }

// wired builds a Manager backed by real collaborators, the same pattern the
// syscall executor uses to assemble a live kernel.
func wired() *Manager {
	m := NewManager()
	sched := NewScheduler(domain.RoundRobin, 10*time.Millisecond)
	mem := memory.NewManager(4<<20, 1000, nil)
	pipes := ipc.NewPipeManager(mem, 4096, 16)
	shm := ipc.NewShmManager(mem)
	queues := ipc.NewQueueManager(mem, 16, 1<<16, 1<<20)
	ipcMgr := ipc.NewManager(pipes, shm, queues)
	sig := signal.NewManager(nil)
	fds := fdtable.NewTable()
	socks := fdtable.NewSocketTable()
	sbx := sandbox.NewManager(100, nil)
	m.Setup(sched, mem, ipcMgr, sig, fds, socks, sbx, nil)
	return m
}

func TestCreateProcessAssignsPidAndSchedules(t *testing.T) {
	m := wired()
	pid, err := m.CreateProcess(0, "worker", 5, domain.SandboxStandard)
	require.NoError(t, err)
	assert.NotZero(t, pid)

	rec, ok := m.GetProcess(pid)
	require.True(t, ok)
	assert.Equal(t, "worker", rec.Name)
	assert.Equal(t, domain.ProcReady, rec.State)
	assert.Equal(t, 1, m.Scheduler().Len())
}

func TestCreateProcessWithCommandPassesShellMetacharactersAsLiteralArg(t *testing.T) {
	m := wired()
	_, _, err := m.CreateProcessWithCommand(0, "evil", 5, domain.SandboxStandard, &domain.ExecConfig{
		Command: "/bin/echo",
		Args:    []string{"hi; rm -rf /"},
	})
	// the process manager itself does not validate args (the syscall layer
	// does before dispatch); exec.Command treats this as a single literal
	// argv entry, never invoking a shell, so this should succeed harmlessly.
	require.NoError(t, err)
}

func TestTerminateProcessClearsEveryCollaborator(t *testing.T) {
	m := wired()
	pid, err := m.CreateProcess(0, "doomed", 5, domain.SandboxStandard)
	require.NoError(t, err)

	_, err = m.mem.Allocate(4096, pid)
	require.NoError(t, err)

	pipeID, err := m.ipcMgr.Pipes().Create(pid, pid, 0)
	require.NoError(t, err)
	_ = pipeID

	fd := m.fds.Open(pid, noopHandle{})
	_ = fd

	require.NoError(t, m.TerminateProcess(pid))

	_, ok := m.GetProcess(pid)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), m.mem.ProcessMemory(pid).CurrentBytes)
	assert.Equal(t, 0, m.fds.Count(pid))
	assert.Equal(t, 0, m.Scheduler().Len())
}

func TestTerminateUnknownProcessReturnsNotFound(t *testing.T) {
	m := wired()
	err := m.TerminateProcess(domain.PID(999))
	require.Error(t, err)
}

func TestSetProcessPriorityUpdatesRecordAndScheduler(t *testing.T) {
	m := wired()
	pid, err := m.CreateProcess(0, "p", 5, domain.SandboxStandard)
	require.NoError(t, err)

	require.NoError(t, m.SetProcessPriority(pid, 9))
	rec, _ := m.GetProcess(pid)
	assert.Equal(t, 9, rec.Priority)
}

func TestBoostAndLowerProcessPriorityClamp(t *testing.T) {
	m := wired()
	pid, err := m.CreateProcess(0, "p", 10, domain.SandboxStandard)
	require.NoError(t, err)

	require.NoError(t, m.BoostProcessPriority(pid))
	rec, _ := m.GetProcess(pid)
	assert.Equal(t, 10, rec.Priority, "already at max, boost should clamp")

	require.NoError(t, m.SetProcessPriority(pid, 0))
	require.NoError(t, m.LowerProcessPriority(pid))
	rec, _ = m.GetProcess(pid)
	assert.Equal(t, 0, rec.Priority, "already at min, lower should clamp")
}

func TestWaitProcessReturnsOnTermination(t *testing.T) {
	m := wired()
	pid, err := m.CreateProcess(0, "p", 5, domain.SandboxStandard)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.WaitProcess(pid, nil) }()

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, m.TerminateProcess(pid))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("wait_process never returned after termination")
	}
}

func TestWaitProcessTimesOutWhenStillAlive(t *testing.T) {
	m := wired()
	pid, err := m.CreateProcess(0, "p", 5, domain.SandboxStandard)
	require.NoError(t, err)

	timeoutMs := int64(20)
	err = m.WaitProcess(pid, &timeoutMs)
	require.Error(t, err)
}

func TestWaitProcessOnAlreadyGoneReturnsImmediately(t *testing.T) {
	m := wired()
	err := m.WaitProcess(domain.PID(42), nil)
	require.NoError(t, err)
}

func TestSandboxSpawnLimitRejectsCreate(t *testing.T) {
	m := wired()
	// exhaust the daemon-wide spawn cap directly through the sandbox
	// manager (parent 0 bypasses the per-sandbox counter), then confirm
	// create_process surfaces the rejection as a permission error.
	sbx := m.sandbox
	for i := 0; i < 100; i++ {
		require.True(t, sbx.RecordSpawn(0))
	}
	_, err := m.CreateProcess(0, "overflow", 5, domain.SandboxStandard)
	require.Error(t, err)
}

func TestSandboxPerParentSpawnLimitRejectsCreate(t *testing.T) {
	m := wired()
	parent, err := m.CreateProcess(0, "parent", 5, domain.SandboxStandard)
	require.NoError(t, err)

	require.NoError(t, m.sandbox.Update(parent, nil, nil, nil, &domain.ResourceLimits{MaxProcesses: 1, MaxFDs: 16, MaxSockets: 4}))

	_, err = m.CreateProcess(parent, "child-1", 5, domain.SandboxStandard)
	require.NoError(t, err)

	_, err = m.CreateProcess(parent, "child-2", 5, domain.SandboxStandard)
	require.Error(t, err)
}
