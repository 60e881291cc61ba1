package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/kerrors"
	"github.com/synthkernel/kerneld/memory"
)

func TestPipeWriteReadRoundTrip(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	pm := NewPipeManager(mem, 64, 8)

	id, err := pm.Create(domain.PID(1), domain.PID(2), 64)
	require.NoError(t, err)

	n, err := pm.Write(id, domain.PID(2), []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := pm.Read(id, domain.PID(1), 10)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestPipeWrongEndRejected(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	pm := NewPipeManager(mem, 64, 8)

	id, err := pm.Create(domain.PID(1), domain.PID(2), 64)
	require.NoError(t, err)

	_, err = pm.Write(id, domain.PID(1), []byte("x"))
	require.Error(t, err)
	var permErr *kerrors.PermissionError
	require.ErrorAs(t, err, &permErr)

	_, err = pm.Read(id, domain.PID(2), 1)
	require.Error(t, err)
	require.ErrorAs(t, err, &permErr)
}

func TestPipeEOFAfterClose(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	pm := NewPipeManager(mem, 64, 8)

	id, err := pm.Create(domain.PID(1), domain.PID(2), 64)
	require.NoError(t, err)

	_, err = pm.Write(id, domain.PID(2), []byte("hi"))
	require.NoError(t, err)
	require.NoError(t, pm.Close(id, domain.PID(2)))

	data, err := pm.Read(id, domain.PID(1), 10)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	// buffer is now drained and the pipe is closed: a further read reports EOF.
	data, err = pm.Read(id, domain.PID(1), 10)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestPipeFullReturnsWouldBlock(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	pm := NewPipeManager(mem, 4, 8)

	id, err := pm.Create(domain.PID(1), domain.PID(2), 4)
	require.NoError(t, err)

	_, err = pm.Write(id, domain.PID(2), []byte("abcd"))
	require.NoError(t, err)

	_, err = pm.Write(id, domain.PID(2), []byte("e"))
	require.ErrorIs(t, err, kerrors.ErrWouldBlock)
}

func TestPipeIDRecycling(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	pm := NewPipeManager(mem, 64, 8)

	id, err := pm.Create(domain.PID(1), domain.PID(2), 64)
	require.NoError(t, err)
	require.NoError(t, pm.Destroy(id, domain.PID(1)))

	next, err := pm.Create(domain.PID(3), domain.PID(4), 64)
	require.NoError(t, err)
	assert.Equal(t, id, next)
}

func TestPipeDestroyReturnsBytesToMemoryManager(t *testing.T) {
	mem := memory.NewManager(128, 1000, nil)
	pm := NewPipeManager(mem, 64, 8)

	id, err := pm.Create(domain.PID(1), domain.PID(2), 64)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), mem.Stats().Used)

	require.NoError(t, pm.Destroy(id, domain.PID(1)))
	assert.Equal(t, uint64(0), mem.Stats().Used)
}

func TestPipeDropAllRemovesBothEnds(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	pm := NewPipeManager(mem, 64, 8)

	id, err := pm.Create(domain.PID(1), domain.PID(2), 64)
	require.NoError(t, err)

	pm.DropAll(domain.PID(2))

	_, ok := pm.Info(id)
	assert.False(t, ok)
}
