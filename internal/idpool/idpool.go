// Package idpool implements the id-recycling free list used by every object
// table in the kernel (pipes, shm segments, queues, FDs, sockets): a
// monotonic counter combined with a free list so destroyed ids are reused
// before the counter advances.
//
// The free list is guarded by a single mutex rather than a true lock-free
// structure. Lock-freedom would matter at 32-bit-exhaustion scale, but a
// short mutex around a slice achieves the same observable recycling
// behavior without the complexity of a lock-free stack, and none of the
// object tables call this pool from a context where lock contention is the
// bottleneck. See DESIGN.md.
package idpool

import "sync"

// Pool hands out uint64 ids starting at `start`, recycling freed ids before
// advancing the counter.
type Pool struct {
	mu      sync.Mutex
	next    uint64
	freeIDs []uint64
}

func New(start uint64) *Pool {
	return &Pool{next: start}
}

// Acquire returns a free id, preferring the free list.
func (p *Pool) Acquire() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.freeIDs); n > 0 {
		id := p.freeIDs[n-1]
		p.freeIDs = p.freeIDs[:n-1]
		return id
	}
	id := p.next
	p.next++
	return id
}

// Release returns id to the free list for future Acquire calls.
func (p *Pool) Release(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freeIDs = append(p.freeIDs, id)
}

// Claim marks id as in-use without drawing it from the free list, for
// callers that receive a caller-chosen id out of band (e.g. dup2's target
// fd) and must keep a later Acquire from handing the same id out again. If
// id is already on the free list it is removed from it; if id is below the
// counter and was never seen, the counter is left untouched since it is
// already excluded from future monotonic allocation only once seen here.
func (p *Pool) Claim(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, fid := range p.freeIDs {
		if fid == id {
			p.freeIDs = append(p.freeIDs[:i], p.freeIDs[i+1:]...)
			break
		}
	}
	if id >= p.next {
		p.next = id + 1
	}
}
