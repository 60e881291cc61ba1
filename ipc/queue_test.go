package ipc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/kerrors"
	"github.com/synthkernel/kerneld/memory"
)

func TestQueueFifoOrder(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	qm := NewQueueManager(mem, 8, 1<<16, 1<<20)

	id, err := qm.Create(domain.QueueFifo, domain.PID(1), 8)
	require.NoError(t, err)

	require.NoError(t, qm.Send(id, domain.PID(1), 0, []byte("first")))
	require.NoError(t, qm.Send(id, domain.PID(1), 0, []byte("second")))

	msg, err := qm.Receive(id, domain.PID(1))
	require.NoError(t, err)
	data, err := qm.ReadMessageData(msg)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	msg, err = qm.Receive(id, domain.PID(1))
	require.NoError(t, err)
	data, err = qm.ReadMessageData(msg)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestQueuePriorityOrder(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	qm := NewQueueManager(mem, 8, 1<<16, 1<<20)

	id, err := qm.Create(domain.QueuePriority, domain.PID(1), 8)
	require.NoError(t, err)

	require.NoError(t, qm.Send(id, domain.PID(1), 1, []byte("low")))
	require.NoError(t, qm.Send(id, domain.PID(1), 10, []byte("high")))
	require.NoError(t, qm.Send(id, domain.PID(1), 5, []byte("mid")))

	want := []string{"high", "mid", "low"}
	for _, w := range want {
		msg, err := qm.Receive(id, domain.PID(1))
		require.NoError(t, err)
		data, err := qm.ReadMessageData(msg)
		require.NoError(t, err)
		assert.Equal(t, w, string(data))
	}
}

func TestQueuePriorityTieBreaksFIFO(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	qm := NewQueueManager(mem, 8, 1<<16, 1<<20)

	id, err := qm.Create(domain.QueuePriority, domain.PID(1), 8)
	require.NoError(t, err)

	require.NoError(t, qm.Send(id, domain.PID(1), 5, []byte("a")))
	require.NoError(t, qm.Send(id, domain.PID(1), 5, []byte("b")))

	msg, err := qm.Receive(id, domain.PID(1))
	require.NoError(t, err)
	data, _ := qm.ReadMessageData(msg)
	assert.Equal(t, "a", string(data))
}

func TestQueueFullReturnsCapacityError(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	qm := NewQueueManager(mem, 8, 1<<16, 1<<20)

	id, err := qm.Create(domain.QueueFifo, domain.PID(1), 1)
	require.NoError(t, err)

	require.NoError(t, qm.Send(id, domain.PID(1), 0, []byte("x")))
	err = qm.Send(id, domain.PID(1), 0, []byte("y"))
	require.Error(t, err)
	var capErr *kerrors.CapacityError
	require.ErrorAs(t, err, &capErr)
}

func TestQueuePubSubFanout(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	qm := NewQueueManager(mem, 8, 1<<16, 1<<20)

	id, err := qm.Create(domain.QueuePubSub, domain.PID(1), 8)
	require.NoError(t, err)

	require.NoError(t, qm.Subscribe(id, domain.PID(2)))
	require.NoError(t, qm.Subscribe(id, domain.PID(3)))

	require.NoError(t, qm.Send(id, domain.PID(1), 0, []byte("broadcast")))

	for _, sub := range []domain.PID{2, 3} {
		msg, err := qm.Receive(id, sub)
		require.NoError(t, err)
		data, err := qm.ReadMessageData(msg)
		require.NoError(t, err)
		assert.Equal(t, "broadcast", string(data))
	}
}

func TestQueueNotSubscribedRejected(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	qm := NewQueueManager(mem, 8, 1<<16, 1<<20)

	id, err := qm.Create(domain.QueuePubSub, domain.PID(1), 8)
	require.NoError(t, err)

	_, err = qm.Receive(id, domain.PID(2))
	require.Error(t, err)
}

func TestQueuePollWakesOnSend(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	qm := NewQueueManager(mem, 8, 1<<16, 1<<20)

	id, err := qm.Create(domain.QueueFifo, domain.PID(1), 8)
	require.NoError(t, err)

	done := make(chan domain.Message, 1)
	go func() {
		msg, err := qm.Poll(id, domain.PID(1), nil)
		require.NoError(t, err)
		done <- msg
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, qm.Send(id, domain.PID(1), 0, []byte("woken")))

	select {
	case msg := <-done:
		data, err := qm.ReadMessageData(msg)
		require.NoError(t, err)
		assert.Equal(t, "woken", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("poll never observed the sent message")
	}
}

func TestQueueIDRecycling(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	qm := NewQueueManager(mem, 8, 1<<16, 1<<20)

	id, err := qm.Create(domain.QueueFifo, domain.PID(1), 8)
	require.NoError(t, err)
	require.NoError(t, qm.Destroy(id, domain.PID(1)))

	next, err := qm.Create(domain.QueueFifo, domain.PID(2), 8)
	require.NoError(t, err)
	assert.Equal(t, id, next)
}

func TestQueueDestroyDrainsAndFreesPayloads(t *testing.T) {
	mem := memory.NewManager(1<<20, 1000, nil)
	qm := NewQueueManager(mem, 8, 1<<16, 1<<20)

	id, err := qm.Create(domain.QueueFifo, domain.PID(1), 8)
	require.NoError(t, err)
	require.NoError(t, qm.Send(id, domain.PID(1), 0, []byte("leftover")))

	usedBefore := mem.Stats().Used
	assert.Greater(t, usedBefore, uint64(0))

	require.NoError(t, qm.Destroy(id, domain.PID(1)))
	assert.Equal(t, uint64(0), mem.Stats().Used)
}
