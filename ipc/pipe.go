package ipc

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/formatter"
	"github.com/synthkernel/kerneld/internal/idpool"
	"github.com/synthkernel/kerneld/internal/kerrors"
)

type pipe struct {
	mu        sync.Mutex
	id        uint64
	reader    domain.PID
	writer    domain.PID
	capacity  int
	buf       []byte
	closed    bool
	backingAddr uint64
}

// PipeManager implements domain.PipeManagerIface.
type PipeManager struct {
	mu    sync.RWMutex
	pipes map[uint64]*pipe
	ids   *idpool.Pool
	wait  *WaitQueue[uint64]

	perPid      map[domain.PID]int
	maxPerPid   int
	defaultCap  int
	mem         domain.MemoryManagerIface
}

func NewPipeManager(mem domain.MemoryManagerIface, defaultCap, maxPerPid int) *PipeManager {
	return &PipeManager{
		pipes:      make(map[uint64]*pipe),
		ids:        idpool.New(1),
		wait:       NewWaitQueue[uint64](),
		perPid:     make(map[domain.PID]int),
		maxPerPid:  maxPerPid,
		defaultCap: defaultCap,
		mem:        mem,
	}
}

func (pm *PipeManager) Create(reader, writer domain.PID, capacity int) (uint64, error) {
	if capacity <= 0 {
		capacity = pm.defaultCap
	}
	if capacity > 16<<20 {
		capacity = 16 << 20 // hard cap on pipe capacity
	}

	pm.mu.Lock()
	if pm.perPid[writer] >= pm.maxPerPid || pm.perPid[reader] >= pm.maxPerPid {
		pm.mu.Unlock()
		return 0, kerrors.Permission("pipe limit exceeded for process")
	}

	pm.mu.Unlock()

	// Backing bytes are allocated through the memory manager, charged to
	// the writer, outside the pipe-table lock since this
	// call crosses into another manager.
	var backingAddr uint64
	if pm.mem != nil {
		addr, err := pm.mem.Allocate(uint64(capacity), writer)
		if err != nil {
			return 0, err
		}
		backingAddr = addr
	}

	id := pm.ids.Acquire()
	p := &pipe{id: id, reader: reader, writer: writer, capacity: capacity, backingAddr: backingAddr}
	pm.mu.Lock()
	pm.pipes[id] = p
	pm.perPid[writer]++
	if reader != writer {
		pm.perPid[reader]++
	}
	pm.mu.Unlock()

	logrus.Debugf("pipe created: %s reader=%d writer=%d cap=%d",
		formatter.ObjectID{Kind: "pipe", ID: id}, reader, writer, capacity)

	return id, nil
}

func (pm *PipeManager) get(id uint64) (*pipe, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.pipes[id]
	if !ok {
		return nil, kerrors.NotFound("pipe %d not found", id)
	}
	return p, nil
}

func (pm *PipeManager) Write(id uint64, pid domain.PID, data []byte) (int, error) {
	p, err := pm.get(id)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	if p.writer != pid {
		p.mu.Unlock()
		return 0, kerrors.Permission("pid %d is not the writer of pipe %d", pid, id)
	}
	if p.closed {
		p.mu.Unlock()
		return 0, kerrors.NotFound("pipe %d is closed", id)
	}

	room := p.capacity - len(p.buf)
	if room <= 0 {
		p.mu.Unlock()
		return 0, kerrors.ErrWouldBlock
	}
	n := len(data)
	if n > room {
		n = room
	}
	p.buf = append(p.buf, data[:n]...)
	p.mu.Unlock()

	// Wake-after-release: the pipe lock above is released before notifying.
	pm.wait.NotifyOne(id)

	return n, nil
}

func (pm *PipeManager) Read(id uint64, pid domain.PID, size int) ([]byte, error) {
	p, err := pm.get(id)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.reader != pid {
		p.mu.Unlock()
		return nil, kerrors.Permission("pid %d is not the reader of pipe %d", pid, id)
	}

	if len(p.buf) == 0 {
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return []byte{}, nil
		}
		return nil, kerrors.ErrWouldBlock
	}

	n := size
	if n > len(p.buf) || n <= 0 {
		n = len(p.buf)
	}
	out := make([]byte, n)
	copy(out, p.buf[:n])
	p.buf = p.buf[n:]
	p.mu.Unlock()

	return out, nil
}

func (pm *PipeManager) Close(id uint64, pid domain.PID) error {
	p, err := pm.get(id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.reader != pid && p.writer != pid {
		p.mu.Unlock()
		return kerrors.Permission("pid %d does not own pipe %d", pid, id)
	}
	p.closed = true
	p.mu.Unlock()

	pm.wait.NotifyAll(id)
	return nil
}

func (pm *PipeManager) Destroy(id uint64, pid domain.PID) error {
	p, err := pm.get(id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.reader != pid && p.writer != pid {
		p.mu.Unlock()
		return kerrors.Permission("pid %d does not own pipe %d", pid, id)
	}
	writer, reader := p.writer, p.reader
	backingAddr := p.backingAddr
	p.mu.Unlock()

	if pm.mem != nil && backingAddr != 0 {
		_ = pm.mem.Deallocate(backingAddr)
	}

	pm.mu.Lock()
	delete(pm.pipes, id)
	pm.perPid[writer]--
	if pm.perPid[writer] <= 0 {
		delete(pm.perPid, writer)
	}
	if reader != writer {
		pm.perPid[reader]--
		if pm.perPid[reader] <= 0 {
			delete(pm.perPid, reader)
		}
	}
	pm.mu.Unlock()

	pm.ids.Release(id)
	pm.wait.Forget(id)

	return nil
}

func (pm *PipeManager) Info(id uint64) (domain.PipeInfo, bool) {
	p, err := pm.get(id)
	if err != nil {
		return domain.PipeInfo{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.PipeInfo{
		ID:       p.id,
		Reader:   p.reader,
		Writer:   p.writer,
		Capacity: p.capacity,
		Buffered: len(p.buf),
		Closed:   p.closed,
	}, true
}

// DropAll destroys every pipe referencing pid, as either end, for
// terminate_process cleanup.
func (pm *PipeManager) DropAll(pid domain.PID) {
	pm.mu.RLock()
	var ids []uint64
	for id, p := range pm.pipes {
		p.mu.Lock()
		if p.reader == pid || p.writer == pid {
			ids = append(ids, id)
		}
		p.mu.Unlock()
	}
	pm.mu.RUnlock()

	for _, id := range ids {
		p, err := pm.get(id)
		if err != nil {
			continue
		}
		p.mu.Lock()
		owner := p.writer
		p.mu.Unlock()
		_ = pm.Destroy(id, owner)
	}
}

// Count reports how many pipe endpoints (reader or writer slots) pid
// currently holds, the figure the sandbox's resource-limit gate compares
// against ResourceLimits.MaxPipes before a new pipe is created.
func (pm *PipeManager) Count(pid domain.PID) int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.perPid[pid]
}

var _ domain.PipeManagerIface = (*PipeManager)(nil)
