package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthkernel/kerneld/syscalls"
)

func TestDecodeOpUnknownOperationReturnsValidationError(t *testing.T) {
	_, err := decodeOp("bogus.operation", nil)
	require.Error(t, err)
}

func TestDecodeOpProcessCreateFieldsRoundTrip(t *testing.T) {
	exe, err := decodeOp("process.create", map[string]interface{}{
		"Name":     "worker",
		"Priority": float64(7),
	})
	require.NoError(t, err)

	pc, ok := exe.(*syscalls.ProcessCreate)
	require.True(t, ok)
	assert.Equal(t, "worker", pc.Name)
	assert.Equal(t, 7, pc.Priority)
}

func TestDecodeOpNoArgOperationsIgnoreArgs(t *testing.T) {
	for _, op := range []string{"process.list", "scheduler.stats", "memory.stats", "sysinfo.overview", "time.now"} {
		exe, err := decodeOp(op, nil)
		require.NoError(t, err, op)
		assert.NotNil(t, exe, op)
	}
}

func TestDecodeOpFsReadBuildsPathAwareExecutable(t *testing.T) {
	exe, err := decodeOp("fs.read", map[string]interface{}{"Path": "/tmp/x"})
	require.NoError(t, err)

	pa, ok := exe.(syscalls.PathAware)
	require.True(t, ok, "fs.read must expose Path() for the sandbox path check")
	assert.Equal(t, "/tmp/x", pa.Path())
}

func TestDecodeOpPipeCreateFields(t *testing.T) {
	exe, err := decodeOp("pipe.create", map[string]interface{}{
		"Reader":   float64(1),
		"Writer":   float64(2),
		"Capacity": float64(4096),
	})
	require.NoError(t, err)
	pc, ok := exe.(*syscalls.PipeCreate)
	require.True(t, ok)
	assert.EqualValues(t, 1, pc.Reader)
	assert.EqualValues(t, 2, pc.Writer)
}
