package fdtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthkernel/kerneld/domain"
)

// trackingHandle records whether Close was called, so cleanup tests can
// assert every fd was actually released rather than just forgotten.
type trackingHandle struct {
	closed bool
}

func (h *trackingHandle) Read(p []byte) (int, error)                   { return 0, nil }
func (h *trackingHandle) Write(p []byte) (int, error)                  { return len(p), nil }
func (h *trackingHandle) Seek(offset int64, whence int) (int64, error) { return 0, nil }
func (h *trackingHandle) Close() error                                 { h.closed = true; return nil }

func TestOpenStartsAtReservedStdioBoundary(t *testing.T) {
	tbl := NewTable()
	fd := tbl.Open(domain.PID(1), &trackingHandle{})
	assert.Equal(t, firstFd, fd)
}

func TestOpenFdSpaceIsIndependentPerPid(t *testing.T) {
	tbl := NewTable()
	fd1 := tbl.Open(domain.PID(1), &trackingHandle{})
	fd2 := tbl.Open(domain.PID(2), &trackingHandle{})
	assert.Equal(t, fd1, fd2, "each pid's fd space starts fresh at firstFd")
}

func TestGetReturnsHandleForOpenFd(t *testing.T) {
	tbl := NewTable()
	h := &trackingHandle{}
	fd := tbl.Open(domain.PID(1), h)

	got, ok := tbl.Get(domain.PID(1), fd)
	require.True(t, ok)
	assert.Same(t, h, got)
}

func TestGetUnknownPidOrFdReturnsFalse(t *testing.T) {
	tbl := NewTable()
	_, ok := tbl.Get(domain.PID(99), 3)
	assert.False(t, ok)

	tbl.Open(domain.PID(1), &trackingHandle{})
	_, ok = tbl.Get(domain.PID(1), 999)
	assert.False(t, ok)
}

func TestCloseReleasesFdForRecycling(t *testing.T) {
	tbl := NewTable()
	h := &trackingHandle{}
	fd := tbl.Open(domain.PID(1), h)

	require.NoError(t, tbl.Close(domain.PID(1), fd))
	assert.True(t, h.closed)

	_, ok := tbl.Get(domain.PID(1), fd)
	assert.False(t, ok)

	next := tbl.Open(domain.PID(1), &trackingHandle{})
	assert.Equal(t, fd, next, "freed fd should be handed out again before the counter advances")
}

func TestCloseUnknownFdReturnsNotFound(t *testing.T) {
	tbl := NewTable()
	tbl.Open(domain.PID(1), &trackingHandle{})
	err := tbl.Close(domain.PID(1), 999)
	assert.Error(t, err)
}

func TestDupSharesHandleUnderNewFd(t *testing.T) {
	tbl := NewTable()
	h := &trackingHandle{}
	fd := tbl.Open(domain.PID(1), h)

	dupFd, err := tbl.Dup(domain.PID(1), fd)
	require.NoError(t, err)
	assert.NotEqual(t, fd, dupFd)

	got, ok := tbl.Get(domain.PID(1), dupFd)
	require.True(t, ok)
	assert.Same(t, h, got)
}

func TestDupUnknownFdReturnsNotFound(t *testing.T) {
	tbl := NewTable()
	_, err := tbl.Dup(domain.PID(1), 3)
	assert.Error(t, err)
}

func TestDup2AliasesOldFdOntoNewFd(t *testing.T) {
	tbl := NewTable()
	h := &trackingHandle{}
	oldFd := tbl.Open(domain.PID(1), h)
	newFd := oldFd + 50

	require.NoError(t, tbl.Dup2(domain.PID(1), oldFd, newFd))

	got, ok := tbl.Get(domain.PID(1), newFd)
	require.True(t, ok)
	assert.Same(t, h, got)
}

func TestDup2OnSameFdIsNoop(t *testing.T) {
	tbl := NewTable()
	fd := tbl.Open(domain.PID(1), &trackingHandle{})
	assert.NoError(t, tbl.Dup2(domain.PID(1), fd, fd))
}

func TestDup2ClosesPreviousOccupantOfNewFd(t *testing.T) {
	tbl := NewTable()
	oldH := &trackingHandle{}
	victim := &trackingHandle{}

	oldFd := tbl.Open(domain.PID(1), oldH)
	newFd := tbl.Open(domain.PID(1), victim)

	require.NoError(t, tbl.Dup2(domain.PID(1), oldFd, newFd))
	assert.True(t, victim.closed)

	got, ok := tbl.Get(domain.PID(1), newFd)
	require.True(t, ok)
	assert.Same(t, oldH, got)
}

func TestCloseAllClosesEveryHandleAndDropsPid(t *testing.T) {
	tbl := NewTable()
	handles := make([]*trackingHandle, 3)
	for i := range handles {
		handles[i] = &trackingHandle{}
		tbl.Open(domain.PID(1), handles[i])
	}

	tbl.CloseAll(domain.PID(1))

	for _, h := range handles {
		assert.True(t, h.closed)
	}
	assert.Equal(t, 0, tbl.Count(domain.PID(1)))
}

func TestCountReflectsOpenFdsForPid(t *testing.T) {
	tbl := NewTable()
	assert.Equal(t, 0, tbl.Count(domain.PID(1)))

	tbl.Open(domain.PID(1), &trackingHandle{})
	tbl.Open(domain.PID(1), &trackingHandle{})
	assert.Equal(t, 2, tbl.Count(domain.PID(1)))

	tbl.Open(domain.PID(2), &trackingHandle{})
	assert.Equal(t, 2, tbl.Count(domain.PID(1)), "counts are per-pid")
}
