package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/kerrors"
)

func TestSendRequiresInitializedTarget(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Send(domain.PID(1), domain.PID(2), SIGHUP)
	require.Error(t, err)
}

func TestBroadcastSkipsSender(t *testing.T) {
	m := NewManager(nil)
	for _, pid := range []domain.PID{1, 2, 3, 4} {
		require.NoError(t, m.InitializeProcess(pid))
	}

	count := m.Broadcast(domain.PID(1), SIGHUP)
	assert.Equal(t, 3, count)
	assert.Equal(t, 0, m.PendingCount(domain.PID(1)))
	for _, pid := range []domain.PID{2, 3, 4} {
		assert.Equal(t, 1, m.PendingCount(pid))
	}
}

func TestSignalMaskBlocksThenUnblocks(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.InitializeProcess(domain.PID(1)))

	require.NoError(t, m.BlockSignal(domain.PID(1), SIGINT))
	_, err := m.Send(domain.PID(0), domain.PID(1), SIGINT)
	require.Error(t, err)
	var blocked *kerrors.SignalBlockedError
	require.ErrorAs(t, err, &blocked)

	require.NoError(t, m.UnblockSignal(domain.PID(1), SIGINT))
	_, err = m.Send(domain.PID(0), domain.PID(1), SIGINT)
	require.NoError(t, err)
}

func TestSIGKILLCannotBeBlockedAndNeverQueues(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.InitializeProcess(domain.PID(1)))

	err := m.BlockSignal(domain.PID(1), SIGKILL)
	require.Error(t, err)

	outcome, err := m.Send(domain.PID(0), domain.PID(1), SIGKILL)
	require.NoError(t, err)
	assert.Equal(t, domain.SigTerminated, outcome)
	assert.Equal(t, 0, m.PendingCount(domain.PID(1)))
}

func TestSIGSTOPBypassesQueue(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.InitializeProcess(domain.PID(1)))

	outcome, err := m.Send(domain.PID(0), domain.PID(1), SIGSTOP)
	require.NoError(t, err)
	assert.Equal(t, domain.SigStopped, outcome)
	assert.Equal(t, 0, m.PendingCount(domain.PID(1)))
}

func TestRealtimeSignalsDeliverBeforeStandard(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.InitializeProcess(domain.PID(1)))

	// standard signal queued first, then a realtime signal queued second;
	// the realtime signal must still pop out of the heap first.
	rt := domain.Signal(40)
	_, err := m.Send(domain.PID(0), domain.PID(1), SIGHUP)
	require.NoError(t, err)
	_, err = m.Send(domain.PID(0), domain.PID(1), rt)
	require.NoError(t, err)

	p, err := m.get(domain.PID(1))
	require.NoError(t, err)
	p.mu.Lock()
	first := p.pending[0].sig
	p.mu.Unlock()
	assert.Equal(t, rt, first)

	delivered, err := m.DeliverPending(domain.PID(1))
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
}

func TestHandlerLimitEnforced(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.InitializeProcess(domain.PID(1)))

	for i := domain.Signal(1); i < domain.Signal(1+maxHandlersPerProcess); i++ {
		if i == SIGKILL || i == SIGSTOP {
			continue
		}
		require.NoError(t, m.RegisterHandler(domain.PID(1), i, domain.ActionHandle))
	}
	// 62 handlers so far (SIGKILL and SIGSTOP skipped); two more reach the cap.
	require.NoError(t, m.RegisterHandler(domain.PID(1), domain.Signal(65), domain.ActionHandle))
	require.NoError(t, m.RegisterHandler(domain.PID(1), domain.Signal(66), domain.ActionHandle))
	require.Error(t, m.RegisterHandler(domain.PID(1), domain.Signal(67), domain.ActionHandle))
}

func TestCleanupProcessRemovesState(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.InitializeProcess(domain.PID(1)))
	m.CleanupProcess(domain.PID(1))

	_, err := m.Send(domain.PID(0), domain.PID(1), SIGHUP)
	require.Error(t, err)
}

func TestDefaultOutcomesPerSignalClass(t *testing.T) {
	assert.Equal(t, domain.SigStopped, defaultOutcome(SIGSTOP))
	assert.Equal(t, domain.SigStopped, defaultOutcome(SIGTSTP))
	assert.Equal(t, domain.SigContinued, defaultOutcome(SIGCONT))
	assert.Equal(t, domain.SigIgnored, defaultOutcome(SIGUSR1))
	assert.Equal(t, domain.SigIgnored, defaultOutcome(SIGCHLD))
	assert.Equal(t, domain.SigTerminated, defaultOutcome(SIGTERM))
	assert.Equal(t, domain.SigTerminated, defaultOutcome(SIGSEGV))
}
