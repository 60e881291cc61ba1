//
// Copyright 2019-2020 Nestybox, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package memory implements the size-capped address-space simulator:
// per-PID accounting, pressure levels, and a deferred GC sweep. The
// service struct is one Mutex-guarded struct holding every table the
// manager owns.
package memory

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/formatter"
	"github.com/synthkernel/kerneld/internal/kerrors"
)

// Pressure levels derived from used/total.
const (
	PressureNone     = "none"
	PressureMedium   = "medium"
	PressureHigh     = "high"
	PressureCritical = "critical"
)

type block struct {
	address   uint64
	size      uint64
	allocated bool
	owner     domain.PID
	data      []byte // backing bytes, created on first WriteBytes
}

type procTracking struct {
	current domain.ProcessMemory
}

// Manager implements domain.MemoryManagerIface.
//
// Design note: a natural decomposition would split blocks, address-counter,
// used-bytes, and tracking into four inner locks taken in a fixed order. A
// single mutex guarding all four gives the same atomicity with no ordering
// discipline to get wrong, so that's what this implementation uses; see
// DESIGN.md.
type Manager struct {
	mu sync.Mutex

	total uint64

	blocks     map[uint64]*block
	nextAddr   uint64
	used       uint64
	deallocCnt int
	gcThreshold int

	tracking map[domain.PID]*procTracking

	sink domain.EventSinkIface
}

func NewManager(totalBytes uint64, gcThreshold int, sink domain.EventSinkIface) *Manager {
	if gcThreshold <= 0 {
		gcThreshold = 1000
	}
	return &Manager{
		total:       totalBytes,
		blocks:      make(map[uint64]*block),
		nextAddr:    1,
		gcThreshold: gcThreshold,
		tracking:    make(map[domain.PID]*procTracking),
		sink:        sink,
	}
}

func (m *Manager) Allocate(size uint64, pid domain.PID) (uint64, error) {
	if size == 0 {
		return 0, kerrors.Validation("allocation size must be > 0")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.used+size > m.total {
		return 0, &kerrors.OutOfMemoryError{
			Requested: size,
			Available: m.total - m.used,
			Used:      m.used,
			Total:     m.total,
		}
	}

	addr := m.nextAddr
	m.nextAddr += size
	m.blocks[addr] = &block{address: addr, size: size, allocated: true, owner: pid}
	m.used += size

	pt, ok := m.tracking[pid]
	if !ok {
		pt = &procTracking{}
		m.tracking[pid] = pt
	}
	pt.current.CurrentBytes += size
	pt.current.AllocationCount++
	if pt.current.CurrentBytes > pt.current.PeakBytes {
		pt.current.PeakBytes = pt.current.CurrentBytes
	}

	pressure := m.pressureLocked()
	if pressure == PressureHigh || pressure == PressureCritical {
		logrus.Warnf("memory pressure %s after allocating %d bytes to %s (used=%d/%d)",
			pressure, size, formatter.Pid{Value: uint32(pid)}, m.used, m.total)
	}

	return addr, nil
}

func (m *Manager) Deallocate(addr uint64) error {
	m.mu.Lock()
	var collect, found bool
	func() {
		defer m.mu.Unlock()

		b, ok := m.blocks[addr]
		if !ok {
			return
		}
		found = true
		if !b.allocated {
			return
		}

		b.allocated = false
		m.used -= b.size
		m.deallocCnt++

		if pt, ok := m.tracking[b.owner]; ok {
			if pt.current.CurrentBytes >= b.size {
				pt.current.CurrentBytes -= b.size
			} else {
				pt.current.CurrentBytes = 0
			}
		}

		collect = m.deallocCnt >= m.gcThreshold
	}()

	if !found {
		return kerrors.NotFound("no such memory block: %s", formatter.Addr{Value: addr})
	}
	if collect {
		m.Collect()
	}
	return nil
}

// FreeProcessMemory atomically marks all of pid's blocks freed and drops its
// tracking entry.
func (m *Manager) FreeProcessMemory(pid domain.PID) {
	m.mu.Lock()
	var freed uint64
	for _, b := range m.blocks {
		if b.owner == pid && b.allocated {
			b.allocated = false
			freed += b.size
			m.deallocCnt++
		}
	}
	m.used -= freed
	delete(m.tracking, pid)
	collect := m.deallocCnt >= m.gcThreshold
	m.mu.Unlock()

	if collect {
		m.Collect()
	}
}

func (m *Manager) ReadBytes(addr uint64, size uint64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[addr]
	if !ok || !b.allocated {
		return nil, kerrors.NotFound("no such memory block: %s", formatter.Addr{Value: addr})
	}
	if size > b.size {
		size = b.size
	}
	// Bytes never written read back as zero; there is no actual paging.
	out := make([]byte, size)
	copy(out, b.data)
	return out, nil
}

func (m *Manager) WriteBytes(addr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[addr]
	if !ok || !b.allocated {
		return kerrors.NotFound("no such memory block: %s", formatter.Addr{Value: addr})
	}
	if uint64(len(data)) > b.size {
		return kerrors.Validation("write of %d bytes exceeds block size %d", len(data), b.size)
	}
	if b.data == nil {
		b.data = make([]byte, b.size)
	}
	copy(b.data, data)
	return nil
}

func (m *Manager) Info(addr uint64) (domain.MemoryInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[addr]
	if !ok {
		return domain.MemoryInfo{}, false
	}
	return domain.MemoryInfo{
		Address:   b.address,
		Size:      b.size,
		Allocated: b.allocated,
		OwnerPid:  b.owner,
	}, true
}

func (m *Manager) IsValid(addr uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[addr]
	return ok && b.allocated
}

func (m *Manager) Stats() domain.MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var allocated, free int
	for _, b := range m.blocks {
		if b.allocated {
			allocated++
		} else {
			free++
		}
	}

	return domain.MemoryStats{
		Used:            m.used,
		Total:           m.total,
		AllocatedBlocks: allocated,
		FreeBlocks:      free,
		Pressure:        m.pressureLocked(),
	}
}

func (m *Manager) ProcessMemory(pid domain.PID) domain.ProcessMemory {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pt, ok := m.tracking[pid]; ok {
		return pt.current
	}
	return domain.ProcessMemory{}
}

// Collect physically removes all freed blocks.
func (m *Manager) Collect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectLocked()
}

func (m *Manager) collectLocked() {
	removed := 0
	for addr, b := range m.blocks {
		if !b.allocated {
			delete(m.blocks, addr)
			removed++
		}
	}
	m.deallocCnt = 0
	if removed > 0 {
		logrus.Debugf("memory gc: removed %d freed blocks", removed)
		if m.sink != nil {
			m.sink.Emit(domain.KernelEvent{Kind: "memory.gc", Message: "collected freed blocks"})
		}
	}
}

func (m *Manager) pressureLocked() string {
	if m.total == 0 {
		return PressureNone
	}
	pct := float64(m.used) / float64(m.total) * 100
	switch {
	case pct >= 95:
		return PressureCritical
	case pct >= 80:
		return PressureHigh
	case pct >= 60:
		return PressureMedium
	default:
		return PressureNone
	}
}

var _ domain.MemoryManagerIface = (*Manager)(nil)
