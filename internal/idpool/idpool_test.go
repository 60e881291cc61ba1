package idpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcquireMonotonicWhenFreeListEmpty(t *testing.T) {
	p := New(1)
	assert.Equal(t, uint64(1), p.Acquire())
	assert.Equal(t, uint64(2), p.Acquire())
	assert.Equal(t, uint64(3), p.Acquire())
}

func TestReleaseThenAcquireRecyclesID(t *testing.T) {
	p := New(1)
	a := p.Acquire()
	b := p.Acquire()
	p.Release(a)

	// free list is drained before the counter advances.
	assert.Equal(t, a, p.Acquire())
	assert.NotEqual(t, b, p.Acquire())
}

func TestRoundTripOverlapsAtLeastOneID(t *testing.T) {
	p := New(1)
	const n = 10

	first := make([]uint64, n)
	for i := range first {
		first[i] = p.Acquire()
	}
	for _, id := range first {
		p.Release(id)
	}

	second := make(map[uint64]bool, n)
	for i := 0; i < n; i++ {
		second[p.Acquire()] = true
	}

	overlap := 0
	for _, id := range first {
		if second[id] {
			overlap++
		}
	}
	assert.Greater(t, overlap, 0, "expected at least one recycled id across the round trip")
}

func TestLIFOFreeListOrder(t *testing.T) {
	p := New(1)
	a := p.Acquire()
	b := p.Acquire()
	c := p.Acquire()

	p.Release(a)
	p.Release(b)
	p.Release(c)

	assert.Equal(t, c, p.Acquire())
	assert.Equal(t, b, p.Acquire())
	assert.Equal(t, a, p.Acquire())
}
