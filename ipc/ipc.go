package ipc

import "github.com/synthkernel/kerneld/domain"

// Manager aggregates the pipe/shm/queue facades behind domain.IpcManagerIface
// so the process manager can drop all of a terminated PID's IPC objects with
// one call.
type Manager struct {
	pipes  *PipeManager
	shm    *ShmManager
	queues *QueueManager
}

func NewManager(pipes *PipeManager, shm *ShmManager, queues *QueueManager) *Manager {
	return &Manager{pipes: pipes, shm: shm, queues: queues}
}

func (m *Manager) Pipes() domain.PipeManagerIface   { return m.pipes }
func (m *Manager) Shm() domain.ShmManagerIface       { return m.shm }
func (m *Manager) Queues() domain.QueueManagerIface  { return m.queues }

// DropProcessObjects releases every pipe, shm segment, and queue pid touches,
// the IPC half of terminate_process's cleanup cascade.
func (m *Manager) DropProcessObjects(pid domain.PID) {
	m.pipes.DropAll(pid)
	m.shm.DropAll(pid)
	m.queues.DropAll(pid)
}

var _ domain.IpcManagerIface = (*Manager)(nil)
