package ipc

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/formatter"
	"github.com/synthkernel/kerneld/internal/idpool"
	"github.com/synthkernel/kerneld/internal/kerrors"
)

type attachment struct {
	readOnly bool
}

type segment struct {
	mu          sync.Mutex
	id          uint64
	owner       domain.PID
	size        uint64
	addr        uint64
	attachments map[domain.PID]attachment
}

// ShmManager implements domain.ShmManagerIface. Memory is
// accounted to the owner via the shared memory manager.
type ShmManager struct {
	mu       sync.RWMutex
	segments map[uint64]*segment
	ids      *idpool.Pool
	mem      domain.MemoryManagerIface
}

func NewShmManager(mem domain.MemoryManagerIface) *ShmManager {
	return &ShmManager{
		segments: make(map[uint64]*segment),
		ids:      idpool.New(1),
		mem:      mem,
	}
}

func (sm *ShmManager) Create(size uint64, owner domain.PID) (uint64, error) {
	if size == 0 {
		return 0, kerrors.Validation("shm segment size must be > 0")
	}

	addr, err := sm.mem.Allocate(size, owner)
	if err != nil {
		return 0, err
	}

	sm.mu.Lock()
	id := sm.ids.Acquire()
	sm.segments[id] = &segment{
		id:          id,
		owner:       owner,
		size:        size,
		addr:        addr,
		attachments: map[domain.PID]attachment{owner: {readOnly: false}},
	}
	sm.mu.Unlock()

	logrus.Debugf("shm segment created: %s owner=%d size=%d",
		formatter.ObjectID{Kind: "shm", ID: id}, owner, size)

	return id, nil
}

func (sm *ShmManager) get(id uint64) (*segment, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.segments[id]
	if !ok {
		return nil, kerrors.NotFound("shm segment %d not found", id)
	}
	return s, nil
}

func (sm *ShmManager) Attach(id uint64, pid domain.PID, readOnly bool) error {
	s, err := sm.get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[pid] = attachment{readOnly: readOnly}
	return nil
}

// Detach of the last attachment is permitted without destruction; the owner may detach too, as long as it re-attaches to write
// again.
func (sm *ShmManager) Detach(id uint64, pid domain.PID) error {
	s, err := sm.get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attachments[pid]; !ok {
		return kerrors.NotFound("pid %d is not attached to shm segment %d", pid, id)
	}
	delete(s.attachments, pid)
	return nil
}

func (sm *ShmManager) Read(id uint64, pid domain.PID, offset, size uint64) ([]byte, error) {
	s, err := sm.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	_, attached := s.attachments[pid]
	addr, segSize := s.addr, s.size
	s.mu.Unlock()

	if !attached {
		return nil, kerrors.Permission("pid %d is not attached to shm segment %d", pid, id)
	}
	if offset+size > segSize {
		return nil, kerrors.Validation("read out of bounds on shm segment %d", id)
	}
	data, err := sm.mem.ReadBytes(addr, offset+size)
	if err != nil {
		return nil, err
	}
	return data[offset:], nil
}

func (sm *ShmManager) Write(id uint64, pid domain.PID, offset uint64, data []byte) error {
	s, err := sm.get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	at, attached := s.attachments[pid]
	addr, segSize := s.addr, s.size
	s.mu.Unlock()

	if !attached {
		return kerrors.Permission("pid %d is not attached to shm segment %d", pid, id)
	}
	if at.readOnly {
		return kerrors.Permission("pid %d holds a read-only attachment to shm segment %d", pid, id)
	}
	if offset+uint64(len(data)) > segSize {
		return kerrors.Validation("write out of bounds on shm segment %d", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, err := sm.mem.ReadBytes(addr, segSize)
	if err != nil {
		return err
	}
	copy(buf[offset:], data)
	return sm.mem.WriteBytes(addr, buf)
}

func (sm *ShmManager) Destroy(id uint64, pid domain.PID) error {
	s, err := sm.get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.owner != pid {
		s.mu.Unlock()
		return kerrors.Permission("only the owner may destroy shm segment %d", id)
	}
	addr := s.addr
	s.mu.Unlock()

	sm.mu.Lock()
	delete(sm.segments, id)
	sm.mu.Unlock()

	sm.ids.Release(id)
	return sm.mem.Deallocate(addr)
}

func (sm *ShmManager) Info(id uint64) (domain.ShmInfo, bool) {
	s, err := sm.get(id)
	if err != nil {
		return domain.ShmInfo{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ShmInfo{ID: s.id, Owner: s.owner, Size: s.size}, true
}

// DropAll detaches pid from every segment it's attached to, and destroys
// segments it owns, for terminate_process cleanup.
func (sm *ShmManager) DropAll(pid domain.PID) {
	sm.mu.RLock()
	var owned, attached []uint64
	for id, s := range sm.segments {
		s.mu.Lock()
		if s.owner == pid {
			owned = append(owned, id)
		} else if _, ok := s.attachments[pid]; ok {
			attached = append(attached, id)
		}
		s.mu.Unlock()
	}
	sm.mu.RUnlock()

	for _, id := range attached {
		_ = sm.Detach(id, pid)
	}
	for _, id := range owned {
		_ = sm.Destroy(id, pid)
	}
}

// Count reports how many shm segments pid owns, the figure the sandbox's
// resource-limit gate compares against ResourceLimits.MaxShmSegments before
// a new segment is created. Unlike PipeManager/QueueManager, ShmManager
// keeps no running per-pid counter, so this scans the segment table the
// same way DropAll does.
func (sm *ShmManager) Count(pid domain.PID) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	n := 0
	for _, s := range sm.segments {
		s.mu.Lock()
		if s.owner == pid {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

var _ domain.ShmManagerIface = (*ShmManager)(nil)
