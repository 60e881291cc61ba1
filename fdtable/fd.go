// Package fdtable implements the per-process file-descriptor and socket
// tables: small-int ids handed out from a recycled free
// list, with per-PID indices for O(1) bulk cleanup on process termination.
package fdtable

import (
	"sync"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/idpool"
	"github.com/synthkernel/kerneld/internal/kerrors"
)

const firstFd = 3 // 0,1,2 reserved for stdio, matching host fd conventions

type fdEntry struct {
	handle domain.FileHandle
}

// Table implements domain.FdTableIface. Ids are scoped per-PID: two
// processes can both hold fd 3 pointing at unrelated handles.
type Table struct {
	mu      sync.RWMutex
	perPid  map[domain.PID]map[int]*fdEntry
	idPools map[domain.PID]*idpool.Pool
}

func NewTable() *Table {
	return &Table{
		perPid:  make(map[domain.PID]map[int]*fdEntry),
		idPools: make(map[domain.PID]*idpool.Pool),
	}
}

func (t *Table) poolFor(pid domain.PID) *idpool.Pool {
	p, ok := t.idPools[pid]
	if !ok {
		p = idpool.New(firstFd)
		t.idPools[pid] = p
	}
	return p
}

func (t *Table) Open(pid domain.PID, handle domain.FileHandle) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	fds, ok := t.perPid[pid]
	if !ok {
		fds = make(map[int]*fdEntry)
		t.perPid[pid] = fds
	}
	fd := int(t.poolFor(pid).Acquire())
	fds[fd] = &fdEntry{handle: handle}
	return fd
}

func (t *Table) Get(pid domain.PID, fd int) (domain.FileHandle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fds, ok := t.perPid[pid]
	if !ok {
		return nil, false
	}
	e, ok := fds[fd]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

func (t *Table) Dup(pid domain.PID, fd int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fds, ok := t.perPid[pid]
	if !ok {
		return 0, kerrors.NotFound("pid %d has no open file descriptors", pid)
	}
	e, ok := fds[fd]
	if !ok {
		return 0, kerrors.NotFound("fd %d not open for pid %d", fd, pid)
	}
	newFd := int(t.poolFor(pid).Acquire())
	fds[newFd] = &fdEntry{handle: e.handle}
	return newFd, nil
}

func (t *Table) Dup2(pid domain.PID, oldFd, newFd int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	fds, ok := t.perPid[pid]
	if !ok {
		return kerrors.NotFound("pid %d has no open file descriptors", pid)
	}
	e, ok := fds[oldFd]
	if !ok {
		return kerrors.NotFound("fd %d not open for pid %d", oldFd, pid)
	}
	if oldFd == newFd {
		return nil
	}
	if existing, ok := fds[newFd]; ok {
		_ = existing.handle.Close()
	} else {
		t.poolFor(pid).Claim(uint64(newFd))
	}
	fds[newFd] = &fdEntry{handle: e.handle}
	return nil
}

func (t *Table) Close(pid domain.PID, fd int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	fds, ok := t.perPid[pid]
	if !ok {
		return kerrors.NotFound("pid %d has no open file descriptors", pid)
	}
	e, ok := fds[fd]
	if !ok {
		return kerrors.NotFound("fd %d not open for pid %d", fd, pid)
	}
	delete(fds, fd)
	t.poolFor(pid).Release(uint64(fd))
	return e.handle.Close()
}

// CloseAll closes every fd pid holds, for terminate_process cleanup.
func (t *Table) CloseAll(pid domain.PID) {
	t.mu.Lock()
	fds := t.perPid[pid]
	delete(t.perPid, pid)
	delete(t.idPools, pid)
	t.mu.Unlock()

	for _, e := range fds {
		_ = e.handle.Close()
	}
}

func (t *Table) Count(pid domain.PID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.perPid[pid])
}

var _ domain.FdTableIface = (*Table)(nil)
